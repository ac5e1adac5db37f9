package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"coursebook/gateway"
	"coursebook/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbConn, err := sqlx.Open("postgres", os.Getenv("POSTGRES_URL"))
	if err != nil {
		logrus.WithError(err).Panic("could not open Postgres connection")
	}
	defer dbConn.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: os.Getenv("REDIS_ADDR"),
	})
	defer rdb.Close()

	paymentClient := gateway.NewPaymentClient(
		os.Getenv("GATEWAY_ADDR"),
		os.Getenv("GATEWAY_API_KEY"),
		gateway.DefaultRetryPolicy(),
	)
	notificationClient := gateway.NewNotificationClient(os.Getenv("NOTIFICATIONS_ADDR"))
	webhookVerifier := gateway.NewSignatureVerifier(os.Getenv("GATEWAY_WEBHOOK_SECRET"), 5*time.Minute)

	svc := service.New(
		service.Config{HTTPAddr: ":8080"},
		dbConn,
		rdb,
		paymentClient,
		paymentClient,
		notificationClient,
		webhookVerifier,
	)

	if err := svc.Run(ctx); err != nil {
		logrus.WithError(err).Panic("service stopped")
	}
}

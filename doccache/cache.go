// Package doccache serves booking documents (confirmations, invoices) from
// Redis. Cache keys carry the booking version, so a document generated for a
// stale version can never be served after the booking changed.
package doccache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Document struct {
	BookingID   string    `json:"booking_id"`
	Version     int       `json:"version"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if rdb == nil {
		panic("rdb is nil")
	}

	return &Cache{rdb: rdb, ttl: ttl}
}

func documentKey(bookingID string, version int) string {
	return fmt.Sprintf("document:%s:v%d", bookingID, version)
}

// GetOrGenerate returns the cached document for the booking version, or
// falls through to generate. Redis being down degrades to synchronous
// generation; the result is cached best-effort.
func (c *Cache) GetOrGenerate(
	ctx context.Context,
	bookingID string,
	version int,
	generate func(ctx context.Context) (Document, error),
) (Document, error) {
	key := documentKey(bookingID, version)

	payload, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var document Document
		if err := json.Unmarshal(payload, &document); err == nil {
			return document, nil
		}
		logrus.WithField("key", key).Warn("Discarding unreadable cached document")
	case !errors.Is(err, redis.Nil):
		logrus.WithError(err).Warn("Document cache unavailable, generating synchronously")
	}

	document, err := generate(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("could not generate document: %w", err)
	}

	if payload, err := json.Marshal(document); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logrus.WithError(err).Warn("Could not cache document")
		}
	}

	return document, nil
}

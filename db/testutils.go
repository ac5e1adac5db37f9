package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testDb    *sqlx.DB
	getDbOnce sync.Once
)

func GetDb(t *testing.T) *sqlx.DB {
	getDbOnce.Do(func() {
		url := os.Getenv("POSTGRES_URL")
		if url == "" {
			_, url = StartPostgresContainer()
		}

		var err error
		testDb, err = sqlx.Open("postgres", url)
		assert.NoError(t, err)

		err = InitializeDatabaseSchema(testDb)
		assert.NoError(t, err)
	})
	return testDb
}

func StartPostgresContainer() (testcontainers.Container, string) {
	ctx := context.Background()

	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithDatabase("db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable", "application_name=test")
	if err != nil {
		panic(err)
	}

	return postgresContainer, connStr
}

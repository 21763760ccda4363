//go:build integration

package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nanba/pharmacy-backend/pkg/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultPostgresImage = "postgres:15-alpine"

	// imageEnv overrides the image, e.g. to match the production major version
	imageEnv = "PHARMACY_TEST_POSTGRES_IMAGE"
)

// PostgresContainer is a disposable PostgreSQL for the order service schema
type PostgresContainer struct {
	*postgres.PostgresContainer
	URL string
}

func postgresImage() string {
	if image := os.Getenv(imageEnv); image != "" {
		return image
	}
	return defaultPostgresImage
}

// NewPostgresContainer starts PostgreSQL and waits until it accepts
// connections. The image's init run restarts the server once, hence two
// readiness lines.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(postgresImage()),
		postgres.WithDatabase("pharmacy_test"),
		postgres.WithUsername("pharmacy"),
		postgres.WithPassword("pharmacy"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: container, URL: url}, nil
}

// DatabaseConfig points the service's database settings at the container,
// with a small pool so leaked connections surface quickly.
func (c *PostgresContainer) DatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		URL:             c.URL,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}
}

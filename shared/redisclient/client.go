package redisclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client and verifies the connection. The client
// is long-lived and shared by the record store and the rate limiter.
func NewClient(cfg *Config, logger *slog.Logger) (*redis.Client, error) {
	logger.Info("Connecting to Redis",
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
	)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")

	return client, nil
}

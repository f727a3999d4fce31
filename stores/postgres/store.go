package postgres

import (
	"canvas-editor/core"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const createTable = `
CREATE TABLE IF NOT EXISTS kv (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
)`

type pgStore struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against databaseURL and makes sure the kv table exists.
func Connect(ctx context.Context, databaseURL string) (*pgStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	logrus.Info("Database connection established")
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if namespace == "" || key == "" {
		return nil, core.ErrInvalidKey
	}
	var value []byte
	err := s.pool.QueryRow(ctx, "SELECT value FROM kv WHERE namespace = $1 AND key = $2", namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("key %s/%s: %w", namespace, key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *pgStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	if namespace == "" || key == "" {
		return core.ErrInvalidKey
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		namespace, key, value)
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", namespace, key, err)
	}
	logrus.WithFields(logrus.Fields{
		"namespace":   namespace,
		"key":         key,
		"data_length": len(value),
	}).Debug("Value stored successfully")
	return nil
}

func (s *pgStore) Delete(ctx context.Context, namespace, key string) error {
	if namespace == "" || key == "" {
		return core.ErrInvalidKey
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM kv WHERE namespace = $1 AND key = $2", namespace, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *pgStore) Close() {
	s.pool.Close()
}

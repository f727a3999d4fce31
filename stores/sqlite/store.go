package sqlite

import (
	"canvas-editor/core"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	kvTableStmt := `
	CREATE TABLE IF NOT EXISTS kv (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB,
		updated_at DATETIME,
		PRIMARY KEY (namespace, key)
	);`
	if _, err = db.Exec(kvTableStmt); err != nil {
		log.Fatalf("failed to create kv table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if namespace == "" || key == "" {
		return nil, core.ErrInvalidKey
	}
	log := logrus.WithFields(logrus.Fields{"namespace": namespace, "key": key})

	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE namespace = ? AND key = ?", namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("Key not found")
			return nil, fmt.Errorf("key %s/%s: %w", namespace, key, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve value")
		return nil, err
	}
	return value, nil
}

func (s *sqliteStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	if namespace == "" || key == "" {
		return core.ErrInvalidKey
	}
	log := logrus.WithFields(logrus.Fields{
		"namespace":   namespace,
		"key":         key,
		"data_length": len(value),
	})

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().UTC())
	if err != nil {
		log.WithError(err).Error("Failed to store value")
		return err
	}
	log.Debug("Value stored successfully")
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, namespace, key string) error {
	if namespace == "" || key == "" {
		return core.ErrInvalidKey
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE namespace = ? AND key = ?", namespace, key)
	return err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"canvas-editor/stores/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.pool.Exec(ctx, "TRUNCATE kv")
	require.NoError(t, err)
	return store
}

func TestPostgresStore(t *testing.T) {
	storetest.Run(t, setupTestDB(t))
}

func TestPut_UpdatesTimestamp(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u1", "currentProject", []byte(`{"v":1}`)))
	var first time.Time
	require.NoError(t, store.pool.QueryRow(ctx, "SELECT updated_at FROM kv WHERE namespace = 'u1' AND key = 'currentProject'").Scan(&first))

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.Put(ctx, "u1", "currentProject", []byte(`{"v":2}`)))
	var second time.Time
	require.NoError(t, store.pool.QueryRow(ctx, "SELECT updated_at FROM kv WHERE namespace = 'u1' AND key = 'currentProject'").Scan(&second))

	assert.True(t, second.After(first))
	got, err := store.Get(ctx, "u1", "currentProject")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}

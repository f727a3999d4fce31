// Package storetest holds behaviour checks shared by every core.KVStore
// backend.
package storetest

import (
	"bytes"
	"canvas-editor/core"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// Run exercises store against the KVStore contract. The store must be empty.
func Run(t *testing.T, store core.KVStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "nobody", "user")
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("Get() on missing key error = %v, want ErrNotFound", err)
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		want := []byte(`{"id":"p1"}`)
		if err := store.Put(ctx, "alice", "currentProject", want); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
		got, err := store.Get(ctx, "alice", "currentProject")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Get() = %s, want %s", got, want)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := store.Put(ctx, "alice", "user", []byte("v1")); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
		if err := store.Put(ctx, "alice", "user", []byte("v2")); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
		got, err := store.Get(ctx, "alice", "user")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if string(got) != "v2" {
			t.Errorf("Get() = %s, want v2", got)
		}
	})

	t.Run("NamespacesIsolated", func(t *testing.T) {
		if err := store.Put(ctx, "bob", "user", []byte("bob")); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
		if _, err := store.Get(ctx, "carol", "user"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get() from other namespace error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Put(ctx, "dave", "user", []byte("x")); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
		if err := store.Delete(ctx, "dave", "user"); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, err := store.Get(ctx, "dave", "user"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, "dave", "user"); err != nil {
			t.Errorf("second Delete() error = %v, want nil", err)
		}
	})

	t.Run("EmptyKey", func(t *testing.T) {
		if err := store.Put(ctx, "", "user", []byte("x")); !errors.Is(err, core.ErrInvalidKey) {
			t.Errorf("Put() with empty namespace error = %v, want ErrInvalidKey", err)
		}
		if _, err := store.Get(ctx, "alice", ""); !errors.Is(err, core.ErrInvalidKey) {
			t.Errorf("Get() with empty key error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("ConcurrentWrites", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ns := fmt.Sprintf("user-%d", i)
				if err := store.Put(ctx, ns, "user", []byte(ns)); err != nil {
					t.Errorf("Put(%s) failed: %v", ns, err)
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < 10; i++ {
			ns := fmt.Sprintf("user-%d", i)
			got, err := store.Get(ctx, ns, "user")
			if err != nil {
				t.Errorf("Get(%s) failed: %v", ns, err)
				continue
			}
			if string(got) != ns {
				t.Errorf("Get(%s) = %s", ns, got)
			}
		}
	})
}

package core

import "context"

type (
	// KVStore is durable key-value storage split into namespaces, one per user.
	// It stands in for the browser's local storage.
	KVStore interface {
		// Get returns ErrNotFound (possibly wrapped) when the key is absent.
		Get(ctx context.Context, namespace, key string) ([]byte, error)

		// Put creates or overwrites the value stored under key.
		Put(ctx context.Context, namespace, key string, value []byte) error

		// Delete removes key. Deleting an absent key is not an error.
		Delete(ctx context.Context, namespace, key string) error
	}
)

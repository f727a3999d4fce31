package memory

import (
	"canvas-editor/core"
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// memStore keeps every namespace in process memory. Values are copied on the
// way in and out so callers can't alias stored bytes.
type memStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{data: make(map[string]map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if namespace == "" || key == "" {
		return nil, core.ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"namespace": namespace, "key": key})
	value, ok := s.data[namespace][key]
	if !ok {
		log.Debug("Key not found")
		return nil, fmt.Errorf("key %s/%s: %w", namespace, key, core.ErrNotFound)
	}
	log.Debug("Value retrieved successfully")
	return append([]byte(nil), value...), nil
}

func (s *memStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	if namespace == "" || key == "" {
		return core.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)

	logrus.WithFields(logrus.Fields{
		"namespace":   namespace,
		"key":         key,
		"data_length": len(value),
	}).Debug("Value stored successfully")
	return nil
}

func (s *memStore) Delete(ctx context.Context, namespace, key string) error {
	if namespace == "" || key == "" {
		return core.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		return nil
	}
	delete(ns, key)
	if len(ns) == 0 {
		delete(s.data, namespace)
	}
	logrus.WithFields(logrus.Fields{"namespace": namespace, "key": key}).Debug("Value deleted")
	return nil
}

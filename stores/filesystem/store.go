package filesystem

import (
	"canvas-editor/core"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Each namespace is a directory
// under basePath and each key a JSON file inside it.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// path resolves namespace/key to a file path and refuses anything that would
// escape the namespace directory.
func (s *fsStore) path(namespace, key string) (string, error) {
	if namespace == "" || key == "" {
		return "", core.ErrInvalidKey
	}
	if filepath.Base(key) != key {
		return "", fmt.Errorf("%w: key must not be a path", core.ErrInvalidKey)
	}
	nsPath := filepath.Join(s.basePath, namespace)
	filePath := filepath.Join(nsPath, key+".json")

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absNs, err := filepath.Abs(nsPath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absNs, absBase+string(filepath.Separator)) ||
		!strings.HasPrefix(absFile, absNs+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid path: access denied", core.ErrInvalidKey)
	}
	return absFile, nil
}

func (s *fsStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	filePath, err := s.path(namespace, key)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"namespace": namespace, "key": key, "path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("Key file not found")
			return nil, fmt.Errorf("key %s/%s: %w", namespace, key, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read key file")
		return nil, err
	}
	return data, nil
}

// Put writes to a temporary file and renames it into place so readers never
// see a partial value.
func (s *fsStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	filePath, err := s.path(namespace, key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"namespace": namespace, "key": key, "path": filePath})

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		log.WithError(err).Error("Failed to create namespace directory")
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+key+"-*")
	if err != nil {
		log.WithError(err).Error("Failed to create temporary file")
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		log.WithError(err).Error("Failed to write key file")
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		log.WithError(err).Error("Failed to move key file into place")
		return err
	}

	log.WithField("data_length", len(value)).Debug("Value stored successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, namespace, key string) error {
	filePath, err := s.path(namespace, key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"namespace": namespace, "key": key, "path": filePath})

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		log.WithError(err).Error("Failed to delete key file")
		return err
	}
	log.Debug("Value deleted")
	return nil
}

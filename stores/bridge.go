package stores

import (
	"canvas-editor/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	KeyUser           = "user"
	KeyCurrentProject = "currentProject"
)

// Bridge maps the editor's two durable records onto one namespace of a
// KVStore. Unreadable records are treated as absent.
type Bridge struct {
	kv        core.KVStore
	namespace string
}

func NewBridge(kv core.KVStore, namespace string) *Bridge {
	return &Bridge{kv: kv, namespace: namespace}
}

func (b *Bridge) SaveProject(ctx context.Context, project *core.Project) error {
	return b.put(ctx, KeyCurrentProject, project)
}

// LoadProject returns nil without error when no usable project is stored.
func (b *Bridge) LoadProject(ctx context.Context) (*core.Project, error) {
	var project core.Project
	found, err := b.get(ctx, KeyCurrentProject, &project)
	if err != nil || !found {
		return nil, err
	}
	if len(project.Pages) == 0 {
		b.logMalformed(KeyCurrentProject, errors.New("project has no pages"))
		return nil, nil
	}
	for i := range project.Pages {
		if project.Pages[i].Elements == nil {
			project.Pages[i].Elements = []core.Element{}
		}
	}
	if project.Collaborators == nil {
		project.Collaborators = []string{}
	}
	return &project, nil
}

func (b *Bridge) SaveUser(ctx context.Context, user *core.User) error {
	return b.put(ctx, KeyUser, user)
}

// LoadUser returns nil without error when no usable user is stored.
func (b *Bridge) LoadUser(ctx context.Context) (*core.User, error) {
	var user core.User
	found, err := b.get(ctx, KeyUser, &user)
	if err != nil || !found {
		return nil, err
	}
	if user.ID == "" {
		b.logMalformed(KeyUser, errors.New("user has no id"))
		return nil, nil
	}
	return &user, nil
}

func (b *Bridge) ClearUser(ctx context.Context) error {
	return b.kv.Delete(ctx, b.namespace, KeyUser)
}

func (b *Bridge) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := b.kv.Put(ctx, b.namespace, key, data); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

func (b *Bridge) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := b.kv.Get(ctx, b.namespace, key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		b.logMalformed(key, err)
		return false, nil
	}
	return true, nil
}

func (b *Bridge) logMalformed(key string, err error) {
	logrus.WithFields(logrus.Fields{
		"namespace": b.namespace,
		"key":       key,
		"error":     err,
	}).Warn("Ignoring malformed stored record")
}

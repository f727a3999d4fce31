package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"canvas-editor/collab"
	"canvas-editor/config"
	"canvas-editor/core"
	"canvas-editor/editor"
	"canvas-editor/stores"
	"canvas-editor/weather"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrSignedOut is returned by Open when the user has no stored session.
var ErrSignedOut = errors.New("user is not signed in")

// Workspace is everything one signed-in user edits and watches.
type Workspace struct {
	User    core.Profile
	Bridge  *stores.Bridge
	Editor  *editor.Store
	Collab  *collab.Session
	Weather *weather.State

	autoSave        time.Duration
	weatherInterval time.Duration

	mu      sync.Mutex
	viewers int
	stop    context.CancelFunc
	done    chan struct{}
	closed  bool
}

// Done is closed when the workspace is dropped, for example on logout. Live
// views must let go of it and rejoin.
func (w *Workspace) Done() <-chan struct{} {
	return w.done
}

// Attach registers a live view. The first view starts auto-save and weather
// polling; the returned function detaches and stops them after the last view.
func (w *Workspace) Attach() func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.viewers++
	if w.viewers == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		w.stop = cancel
		go editor.AutoSave(ctx, w.Editor, w.autoSave)
		go w.Weather.Poll(ctx, w.weatherInterval)
		w.Collab.SetConnected(true)
		logrus.WithField("user_id", w.User.ID).Debug("Workspace live")
	}

	var once sync.Once
	return func() { once.Do(w.detach) }
}

func (w *Workspace) detach() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.viewers--
	if w.viewers > 0 {
		return
	}
	w.viewers = 0
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	w.Collab.SetConnected(false)
	logrus.WithField("user_id", w.User.ID).Debug("Workspace idle")
}

// Viewers reports how many live views are attached.
func (w *Workspace) Viewers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewers
}

func (w *Workspace) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	w.viewers = 0
	if !w.closed {
		w.closed = true
		close(w.done)
	}
}

// Registry hands out one Workspace per user.
type Registry struct {
	kv      core.KVStore
	cfg     config.Config
	weather *weather.Client
	now     func() time.Time

	opening    singleflight.Group
	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewRegistry(kv core.KVStore, cfg config.Config, weatherClient *weather.Client) *Registry {
	return &Registry{
		kv:         kv,
		cfg:        cfg,
		weather:    weatherClient,
		now:        func() time.Time { return time.Now().UTC() },
		workspaces: make(map[string]*Workspace),
	}
}

// Open returns the user's workspace, creating it on first use. A new
// workspace restores the stored project or starts a fresh one. Users without
// a stored session get ErrSignedOut.
func (r *Registry) Open(ctx context.Context, user core.Profile) (*Workspace, error) {
	bridge := stores.NewBridge(r.kv, user.ID)
	stored, err := bridge.LoadUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", user.ID, err)
	}
	if stored == nil || stored.ID != user.ID {
		return nil, ErrSignedOut
	}

	if ws, ok := r.Get(user.ID); ok {
		return ws, nil
	}

	// Loading runs outside r.mu; concurrent first requests for one user share
	// a single load.
	v, err, _ := r.opening.Do(user.ID, func() (any, error) {
		if ws, ok := r.Get(user.ID); ok {
			return ws, nil
		}
		ws, err := r.load(ctx, user, bridge)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.workspaces[user.ID] = ws
		r.mu.Unlock()
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

func (r *Registry) load(ctx context.Context, user core.Profile, bridge *stores.Bridge) (*Workspace, error) {
	store := editor.NewStore(bridge, editor.WithHistoryLimit(r.cfg.HistoryLimit))

	found, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading workspace for %s: %w", user.ID, err)
	}
	if !found {
		name := "New Project " + r.now().Format("1/2/2006")
		// The project exists in memory even when the first write fails.
		if err := store.CreateProject(ctx, name, user.ID); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to persist new project")
		}
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"restored": found,
	}).Info("Opened workspace")

	return &Workspace{
		User:            user,
		Bridge:          bridge,
		Editor:          store,
		Collab:          collab.NewSession(),
		Weather:         weather.NewState(r.weather, r.cfg.Weather.Location),
		autoSave:        r.cfg.AutoSaveInterval,
		weatherInterval: r.cfg.Weather.Interval,
		done:            make(chan struct{}),
	}, nil
}

// Get returns an already open workspace.
func (r *Registry) Get(userID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[userID]
	return ws, ok
}

// Drop stops and forgets the user's workspace and closes its Done channel.
// Stored data is left alone.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	ws, ok := r.workspaces[userID]
	delete(r.workspaces, userID)
	r.mu.Unlock()

	if ok {
		ws.close()
		logrus.WithField("user_id", userID).Info("Dropped workspace")
	}
}

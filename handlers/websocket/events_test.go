package websocket

import (
	"canvas-editor/collab"
	"canvas-editor/config"
	"canvas-editor/core"
	"canvas-editor/editor"
	"canvas-editor/identity"
	"canvas-editor/stores"
	"canvas-editor/stores/memory"
	"canvas-editor/weather"
	"canvas-editor/workspace"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	last   map[string]any
}

func (r *recorder) Emit(ev string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		r.last = make(map[string]any)
	}
	r.events = append(r.events, ev)
	if len(args) > 0 {
		r.last[ev] = args[0]
	}
	return nil
}

func (r *recorder) count(ev string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == ev {
			n++
		}
	}
	return n
}

func (r *recorder) lastOf(ev string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[ev]
}

type fixture struct {
	kv       core.KVStore
	tokens   *identity.Tokens
	registry *workspace.Registry
	token    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := config.Config{
		AutoSaveInterval: time.Hour,
		Weather:          config.WeatherConfig{BaseURL: "http://127.0.0.1:1", Interval: time.Hour},
	}
	tokens := identity.NewTokens("secret")
	user, err := tokens.Issue(core.Profile{ID: "u1", Name: "Ada"})
	require.NoError(t, err)
	kv := memory.NewStore()
	require.NoError(t, stores.NewBridge(kv, "u1").SaveUser(context.Background(), user))
	return fixture{
		kv:       kv,
		tokens:   tokens,
		registry: workspace.NewRegistry(kv, cfg, weather.NewClient(cfg.Weather, nil)),
		token:    user.Token,
	}
}

func TestJoinPushesState(t *testing.T) {
	f := newFixture(t)
	out := &recorder{}
	c := newConn(out, f.tokens, f.registry)

	userID, err := c.join(f.token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, 1, out.count(EventState))
	assert.GreaterOrEqual(t, out.count(EventChat), 1)
	assert.GreaterOrEqual(t, out.count(EventWeather), 1)

	ws, ok := f.registry.Get("u1")
	require.True(t, ok)
	assert.Equal(t, 1, ws.Viewers())

	require.NoError(t, ws.Editor.AddPage(context.Background()))
	assert.Equal(t, 2, out.count(EventState))
	st := out.lastOf(EventState).(editor.State)
	assert.Len(t, st.Project.Pages, 2)

	c.close()
	assert.Equal(t, 0, ws.Viewers())
	require.NoError(t, ws.Editor.AddPage(context.Background()))
	assert.Equal(t, 2, out.count(EventState), "no pushes after close")
}

func TestJoinRejectsBadToken(t *testing.T) {
	f := newFixture(t)
	c := newConn(&recorder{}, f.tokens, f.registry)

	_, err := c.join("")
	assert.Error(t, err)
	_, err = c.join("garbage")
	assert.True(t, errors.Is(err, identity.ErrInvalidToken))
}

func TestJoinRejectsSignedOutUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, stores.NewBridge(f.kv, "u1").ClearUser(context.Background()))

	_, err := newConn(&recorder{}, f.tokens, f.registry).join(f.token)
	assert.ErrorIs(t, err, workspace.ErrSignedOut)
}

func TestDropSignsOutSockets(t *testing.T) {
	f := newFixture(t)
	out := &recorder{}
	c := newConn(out, f.tokens, f.registry)
	_, err := c.join(f.token)
	require.NoError(t, err)
	old, _ := f.registry.Get("u1")

	f.registry.Drop("u1")
	require.Eventually(t, func() bool { return out.count(EventSignedOut) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.moveCursor(map[string]any{"x": 1.0, "y": 1.0}), ErrNotJoined)

	// A later login gets a fresh workspace; the socket must rejoin to see it.
	user, err := f.tokens.Issue(core.Profile{ID: "u1", Name: "Ada"})
	require.NoError(t, err)
	require.NoError(t, stores.NewBridge(f.kv, "u1").SaveUser(context.Background(), user))
	_, err = c.join(user.Token)
	require.NoError(t, err)

	ws, ok := f.registry.Get("u1")
	require.True(t, ok)
	assert.NotSame(t, old, ws)
	states := out.count(EventState)
	require.NoError(t, ws.Editor.AddPage(context.Background()))
	assert.Equal(t, states+1, out.count(EventState))
	assert.Equal(t, 1, ws.Viewers())
}

func TestCursorMove(t *testing.T) {
	f := newFixture(t)
	out := &recorder{}
	c := newConn(out, f.tokens, f.registry)

	assert.ErrorIs(t, c.moveCursor(map[string]any{"x": 1.0, "y": 2.0}), ErrNotJoined)

	_, err := c.join(f.token)
	require.NoError(t, err)
	require.NoError(t, c.moveCursor(map[string]any{"x": 12.5, "y": 40.0, "userId": "spoofed"}))

	view := out.lastOf(EventChat).(collab.View)
	require.Len(t, view.Cursors, 1)
	assert.Equal(t, "u1", view.Cursors[0].UserID)
	assert.Equal(t, "Ada", view.Cursors[0].UserName)
	assert.Equal(t, 12.5, view.Cursors[0].X)

	assert.Error(t, c.moveCursor("not a cursor"))

	ws, _ := f.registry.Get("u1")
	c.close()
	assert.Empty(t, ws.Collab.View().Cursors)
}

func TestTwoSocketsShareWorkspace(t *testing.T) {
	f := newFixture(t)
	a := newConn(&recorder{}, f.tokens, f.registry)
	b := newConn(&recorder{}, f.tokens, f.registry)

	_, err := a.join(f.token)
	require.NoError(t, err)
	_, err = b.join(f.token)
	require.NoError(t, err)

	ws, _ := f.registry.Get("u1")
	assert.Equal(t, 2, ws.Viewers())
	a.close()
	assert.Equal(t, 1, ws.Viewers())
	assert.True(t, ws.Collab.View().Connected)
	b.close()
	assert.False(t, ws.Collab.View().Connected)
}

func TestExtractAck(t *testing.T) {
	var got map[string]any
	var gotErr error
	ack, args := extractAck([]any{"token", func(err error, payload map[string]any) {
		gotErr, got = err, payload
	}})
	require.NotNil(t, ack)
	assert.Equal(t, []any{"token"}, args)

	ack(nil, map[string]any{"status": "ok"})
	assert.NoError(t, gotErr)
	assert.Equal(t, "ok", got["status"])

	ack, args = extractAck([]any{"token"})
	assert.Nil(t, ack)
	assert.Len(t, args, 1)
}

func TestWrapAck_SliceCallback(t *testing.T) {
	var got []any
	ack := wrapAck(func(args []any, err error) { got = args })
	require.NotNil(t, ack)

	ack(nil, map[string]any{"status": "ok"})
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"status": "ok"}, got[0])
}

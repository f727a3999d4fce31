// Package apitest wires API handlers behind real authentication and a
// workspace registry for handler tests.
package apitest

import (
	"bytes"
	"canvas-editor/config"
	"canvas-editor/core"
	"canvas-editor/identity"
	"canvas-editor/middleware"
	"canvas-editor/stores"
	"canvas-editor/stores/memory"
	"canvas-editor/weather"
	"canvas-editor/workspace"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

var User = core.Profile{ID: "u1", Name: "Ada Lovelace", Email: "ada@example.com"}

type Harness struct {
	t        *testing.T
	Router   chi.Router
	Registry *workspace.Registry
	Token    string

	kv core.KVStore
}

type Option func(*config.Config)

// New mounts routes under prefix behind AuthJWT and Workspace. kv may be nil.
func New(t *testing.T, kv core.KVStore, prefix string, routes func(chi.Router), opts ...Option) *Harness {
	t.Helper()
	if kv == nil {
		kv = memory.NewStore()
	}
	cfg := config.Config{
		AutoSaveInterval: time.Hour,
		Weather:          config.WeatherConfig{BaseURL: "http://127.0.0.1:1", Location: "India", Interval: time.Hour},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	registry := workspace.NewRegistry(kv, cfg, weather.NewClient(cfg.Weather, nil))
	tokens := identity.NewTokens("secret")
	user, err := tokens.Issue(User)
	require.NoError(t, err)
	require.NoError(t, stores.NewBridge(kv, User.ID).SaveUser(context.Background(), user))

	r := chi.NewRouter()
	r.Route(prefix, func(r chi.Router) {
		r.Use(middleware.AuthJWT(tokens), middleware.Workspace(registry))
		routes(r)
	})
	return &Harness{t: t, Router: r, Registry: registry, Token: user.Token, kv: kv}
}

// WithWeather points the workspace weather client at baseURL.
func WithWeather(baseURL string) Option {
	return func(c *config.Config) { c.Weather.BaseURL = baseURL; c.Weather.APIKey = "k" }
}

// Do sends body as JSON, or verbatim when it is a string.
func (h *Harness) Do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(h.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+h.Token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Router.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the recorded body into v.
func (h *Harness) Decode(rec *httptest.ResponseRecorder, v any) {
	h.t.Helper()
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// Workspace returns the test user's workspace, opening it if needed.
func (h *Harness) Workspace() *workspace.Workspace {
	h.t.Helper()
	ws, err := h.Registry.Open(context.Background(), User)
	require.NoError(h.t, err)
	return ws
}

// SignOut does what logout does: the stored user goes away and so does the
// workspace.
func (h *Harness) SignOut() {
	h.t.Helper()
	require.NoError(h.t, stores.NewBridge(h.kv, User.ID).ClearUser(context.Background()))
	h.Registry.Drop(User.ID)
}

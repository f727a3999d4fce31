package auth

import (
	"canvas-editor/core"
	"canvas-editor/identity"
	"canvas-editor/middleware"
	"canvas-editor/stores"
	"canvas-editor/stores/memory"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	profile core.Profile
	err     error
}

func (s stubSource) Fetch(ctx context.Context) (core.Profile, error) { return s.profile, s.err }

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) AuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (stubProvider) Exchange(ctx context.Context, code string) (core.Profile, error) {
	if code != "good" {
		return core.Profile{}, errors.New("bad code")
	}
	return core.Profile{ID: "stub:7", Name: "Grace"}, nil
}

type dropRecorder struct{ dropped []string }

func (d *dropRecorder) Drop(userID string) { d.dropped = append(d.dropped, userID) }

func newRouter(source ProfileSource, kv core.KVStore, drops *dropRecorder) (*chi.Mux, *identity.Tokens) {
	tokens := identity.NewTokens("secret")
	providers := map[string]identity.Provider{"stub": stubProvider{}}

	r := chi.NewRouter()
	r.Post("/auth/login", HandleLogin(source, tokens, kv))
	r.Get("/auth/{provider}/login", HandleProviderLogin(providers))
	r.Get("/auth/{provider}/callback", HandleProviderCallback(providers, tokens, kv))
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(tokens))
		r.Post("/auth/logout", HandleLogout(kv, drops))
		r.Get("/auth/me", HandleMe(kv))
	})
	return r, tokens
}

func login(t *testing.T, r http.Handler) core.User {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var user core.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	return user
}

func authed(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestLoginMeLogout(t *testing.T) {
	kv := memory.NewStore()
	drops := &dropRecorder{}
	profile := core.Profile{ID: "u1", Name: "Ada Lovelace", Email: "ada@example.com", Avatar: "https://img/ada.jpg"}
	r, tokens := newRouter(stubSource{profile: profile}, kv, drops)

	user := login(t, r)
	assert.Equal(t, profile, user.Profile)
	claims, err := tokens.Parse(user.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)

	stored, err := stores.NewBridge(kv, "u1").LoadUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, user, *stored)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(http.MethodGet, "/auth/me", user.Token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ada Lovelace")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(http.MethodPost, "/auth/logout", user.Token))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"u1"}, drops.dropped)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(http.MethodGet, "/auth/me", user.Token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_SourceFailure(t *testing.T) {
	r, _ := newRouter(stubSource{err: errors.New("offline")}, memory.NewStore(), &dropRecorder{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to fetch user")
}

func TestLogoutRequiresToken(t *testing.T) {
	r, _ := newRouter(stubSource{}, memory.NewStore(), &dropRecorder{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProviderFlow(t *testing.T) {
	kv := memory.NewStore()
	r, tokens := newRouter(stubSource{}, kv, &dropRecorder{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/stub/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, state, cookies[0].Value)

	req := httptest.NewRequest(http.MethodGet, "/auth/stub/callback?code=good&state="+state, nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	target := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(target, "/?token="), target)
	back, err := url.Parse(target)
	require.NoError(t, err)
	claims, err := tokens.Parse(back.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "stub:7", claims.Subject)

	stored, err := stores.NewBridge(kv, "stub:7").LoadUser(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestProviderCallback_Rejections(t *testing.T) {
	r, _ := newRouter(stubSource{}, memory.NewStore(), &dropRecorder{})

	tests := []struct {
		name   string
		target string
		cookie string
		want   int
		where  string
	}{
		{"unknown provider", "/auth/nope/callback?code=good&state=s", "s", http.StatusNotFound, ""},
		{"missing cookie", "/auth/stub/callback?code=good&state=s", "", http.StatusTemporaryRedirect, "/"},
		{"state mismatch", "/auth/stub/callback?code=good&state=s", "other", http.StatusTemporaryRedirect, "/"},
		{"missing code", "/auth/stub/callback?state=s", "s", http.StatusTemporaryRedirect, "/"},
		{"exchange failure", "/auth/stub/callback?code=bad&state=s", "s", http.StatusTemporaryRedirect, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.where != "" {
				assert.Equal(t, tt.where, rec.Header().Get("Location"))
			}
		})
	}
}

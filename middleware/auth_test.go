package middleware

import (
	"canvas-editor/core"
	"canvas-editor/identity"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthJWT(t *testing.T) {
	tokens := identity.NewTokens("secret")
	user, err := tokens.Issue(core.Profile{ID: "u1", Name: "Ada"})
	require.NoError(t, err)

	var seen *identity.Claims
	h := AuthJWT(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = Claims(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + user.Token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + user.Token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "u1", seen.Subject)
				assert.Equal(t, "Ada", seen.Name)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rec.Body.String(), "error")
			}
		})
	}
}

func TestClaims_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := Claims(req.Context())
	assert.False(t, ok)
}

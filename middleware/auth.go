package middleware

import (
	"canvas-editor/identity"
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// TokenParser verifies session tokens.
type TokenParser interface {
	Parse(token string) (*identity.Claims, error)
}

// AuthJWT rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func AuthJWT(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, r, "Authorization header is required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				unauthorized(w, r, "Authorization header format must be Bearer {token}")
				return
			}

			claims, err := tokens.Parse(parts[1])
			if err != nil {
				unauthorized(w, r, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Claims returns the verified claims stored by AuthJWT.
func Claims(ctx context.Context) (*identity.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*identity.Claims)
	return claims, ok && claims != nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"error": msg})
}

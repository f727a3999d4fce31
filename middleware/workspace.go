package middleware

import (
	"canvas-editor/core"
	"canvas-editor/workspace"
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const WorkspaceContextKey = contextKey("workspace")

type WorkspaceOpener interface {
	Open(ctx context.Context, user core.Profile) (*workspace.Workspace, error)
}

// Workspace opens the signed-in user's workspace. It must run after AuthJWT.
// A valid token whose user has signed out is rejected.
func Workspace(workspaces WorkspaceOpener) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := Claims(r.Context())
			if !ok {
				unauthorized(w, r, "User claims not found")
				return
			}

			ws, err := workspaces.Open(r.Context(), claims.Profile())
			if errors.Is(err, workspace.ErrSignedOut) {
				unauthorized(w, r, "Not signed in")
				return
			}
			if err != nil {
				logrus.WithError(err).WithField("user_id", claims.Subject).Error("Failed to open workspace")
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to open workspace"})
				return
			}

			ctx := context.WithValue(r.Context(), WorkspaceContextKey, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CurrentWorkspace(ctx context.Context) (*workspace.Workspace, bool) {
	ws, ok := ctx.Value(WorkspaceContextKey).(*workspace.Workspace)
	return ws, ok && ws != nil
}

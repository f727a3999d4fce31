package auth

import (
	"canvas-editor/core"
	"canvas-editor/identity"
	"canvas-editor/middleware"
	"canvas-editor/stores"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const stateCookie = "oauthstate"

// ProfileSource produces the identity for a direct login.
type ProfileSource interface {
	Fetch(ctx context.Context) (core.Profile, error)
}

// Dropper forgets the live state of a signed-out user.
type Dropper interface {
	Drop(userID string)
}

// HandleLogin signs in with a fresh identity from source and stores the
// resulting user under its own namespace.
func HandleLogin(source ProfileSource, tokens *identity.Tokens, kv core.KVStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := source.Fetch(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to fetch identity")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Failed to fetch user"})
			return
		}

		user, err := signIn(r.Context(), profile, tokens, kv)
		if err != nil {
			logrus.WithError(err).WithField("user_id", profile.ID).Error("Failed to sign in")
			http.Error(w, "Failed to sign in", http.StatusInternalServerError)
			return
		}
		render.JSON(w, r, user)
	}
}

// HandleLogout clears the stored user and drops its workspace. The project
// stays in storage.
func HandleLogout(kv core.KVStore, workspaces Dropper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if err := stores.NewBridge(kv, claims.Subject).ClearUser(r.Context()); err != nil {
			logrus.WithError(err).WithField("user_id", claims.Subject).Error("Failed to clear user")
			http.Error(w, "Failed to sign out", http.StatusInternalServerError)
			return
		}
		workspaces.Drop(claims.Subject)
		logrus.WithField("user_id", claims.Subject).Info("User signed out")
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleMe returns the stored user of a valid token. A token whose user has
// signed out is rejected.
func HandleMe(kv core.KVStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := stores.NewBridge(kv, claims.Subject).LoadUser(r.Context())
		if err != nil {
			logrus.WithError(err).WithField("user_id", claims.Subject).Error("Failed to load user")
			http.Error(w, "Failed to load user", http.StatusInternalServerError)
			return
		}
		if user == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Not signed in"})
			return
		}
		render.JSON(w, r, user)
	}
}

// HandleProviderLogin redirects to the provider named in the route.
func HandleProviderLogin(providers map[string]identity.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := providers[chi.URLParam(r, "provider")]
		if !ok {
			http.Error(w, "Authentication provider not configured", http.StatusNotFound)
			return
		}

		state, err := identity.NewState()
		if err != nil {
			http.Error(w, "Failed to generate state for login", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			Expires:  time.Now().Add(10 * time.Minute),
			HttpOnly: true,
			Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusTemporaryRedirect)
	}
}

// HandleProviderCallback finishes a redirect login and hands the token to
// the frontend as a query parameter.
func HandleProviderCallback(providers map[string]identity.Provider, tokens *identity.Tokens, kv core.KVStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")
		provider, ok := providers[name]
		if !ok {
			http.Error(w, "Authentication provider not configured", http.StatusNotFound)
			return
		}
		log := logrus.WithField("provider", name)

		cookie, err := r.Cookie(stateCookie)
		if err != nil || cookie.Value == "" || cookie.Value != r.FormValue("state") {
			log.Warn("OAuth state mismatch")
			http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

		code := r.FormValue("code")
		if code == "" {
			log.Error("no code in callback")
			http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			return
		}

		profile, err := provider.Exchange(r.Context(), code)
		if err != nil {
			log.WithError(err).Error("Failed to exchange code")
			http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			return
		}

		user, err := signIn(r.Context(), profile, tokens, kv)
		if err != nil {
			log.WithError(err).Error("Failed to sign in")
			http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/?token=%s", url.QueryEscape(user.Token)), http.StatusTemporaryRedirect)
	}
}

func signIn(ctx context.Context, profile core.Profile, tokens *identity.Tokens, kv core.KVStore) (*core.User, error) {
	user, err := tokens.Issue(profile)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	if err := stores.NewBridge(kv, profile.ID).SaveUser(ctx, user); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": profile.ID, "name": profile.Name}).Info("User signed in")
	return user, nil
}

package identity

import (
	"canvas-editor/config"
	"canvas-editor/core"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Provider is a redirect-based sign-in flow.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (core.Profile, error)
}

// NewState returns a random value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type GitHub struct {
	config  *oauth2.Config
	userURL string
}

func NewGitHub(cfg config.OAuthConfig) *GitHub {
	return &GitHub{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: "https://api.github.com/user",
	}
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *GitHub) Exchange(ctx context.Context, code string) (core.Profile, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to exchange token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userURL, nil)
	if err != nil {
		return core.Profile{}, err
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to get user from github: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return core.Profile{}, fmt.Errorf("github user lookup: unexpected status %d", resp.StatusCode)
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		return core.Profile{}, fmt.Errorf("failed to unmarshal github user: %w", err)
	}

	name := githubUser.Name
	if name == "" {
		name = githubUser.Login
	}
	return core.Profile{
		ID:     "github:" + strconv.FormatInt(githubUser.ID, 10),
		Name:   name,
		Email:  githubUser.Email,
		Avatar: githubUser.AvatarURL,
	}, nil
}

type OIDC struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// OIDCClaims represents the claims read from the ID token.
type OIDCClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// NewOIDC discovers the issuer's endpoints.
func NewOIDC(ctx context.Context, cfg config.OIDCConfig) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	logrus.WithField("issuer", cfg.IssuerURL).Info("OIDC provider initialized")

	return &OIDC{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (o *OIDC) Name() string { return "oidc" }

func (o *OIDC) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (o *OIDC) Exchange(ctx context.Context, code string) (core.Profile, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to exchange token: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return core.Profile{}, errors.New("no id_token in token response")
	}
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return core.Profile{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return core.Profile{}, fmt.Errorf("failed to extract claims from ID token: %w", err)
	}

	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}
	if name == "" {
		name = claims.Email
	}
	return core.Profile{ID: claims.Sub, Name: name, Email: claims.Email, Avatar: claims.Picture}, nil
}

// Providers builds every redirect provider the configuration enables.
// Providers that fail to initialise are logged and skipped.
func Providers(ctx context.Context, cfg config.Config) map[string]Provider {
	providers := make(map[string]Provider)
	if cfg.GitHub.Configured() {
		logrus.Info("Initializing GitHub authentication provider.")
		gh := NewGitHub(cfg.GitHub)
		providers[gh.Name()] = gh
	}
	if cfg.OIDC.Configured() {
		logrus.Info("Initializing OIDC authentication provider.")
		o, err := NewOIDC(ctx, cfg.OIDC)
		if err != nil {
			logrus.WithError(err).Error("OIDC provider disabled")
		} else {
			providers[o.Name()] = o
		}
	}
	return providers
}

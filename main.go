package main

import (
	"canvas-editor/collab"
	"canvas-editor/config"
	"canvas-editor/core"
	"canvas-editor/export"
	collabapi "canvas-editor/handlers/api/collab"
	exportapi "canvas-editor/handlers/api/export"
	"canvas-editor/handlers/api/project"
	textgenapi "canvas-editor/handlers/api/textgen"
	weatherapi "canvas-editor/handlers/api/weather"
	"canvas-editor/handlers/auth"
	"canvas-editor/handlers/websocket"
	"canvas-editor/identity"
	authMiddleware "canvas-editor/middleware"
	"canvas-editor/stores"
	"canvas-editor/textgen"
	"canvas-editor/weather"
	"canvas-editor/workspace"
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type services struct {
	kv         core.KVStore
	tokens     *identity.Tokens
	randomUser *identity.RandomUser
	providers  map[string]identity.Provider
	workspaces *workspace.Registry
	feed       *collab.Feed
	generator  *textgen.Generator
	renderer   *export.Renderer
}

func setupRouter(s services) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	requireAuth := authMiddleware.AuthJWT(s.tokens)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", auth.HandleLogin(s.randomUser, s.tokens, s.kv))
		r.Get("/{provider}/login", auth.HandleProviderLogin(s.providers))
		r.Get("/{provider}/callback", auth.HandleProviderCallback(s.providers, s.tokens, s.kv))
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", auth.HandleLogout(s.kv, s.workspaces))
			r.Get("/me", auth.HandleMe(s.kv))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireAuth, authMiddleware.Workspace(s.workspaces))

		r.Route("/project", project.Routes)
		r.Route("/collab", func(r chi.Router) { collabapi.Routes(r, s.feed) })
		r.Route("/weather", weatherapi.Routes)
		r.Post("/textgen", textgenapi.HandleGenerate(s.generator))
		r.Route("/export", func(r chi.Router) { exportapi.Routes(r, s.renderer) })
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})

	return r
}

func waitForShutdown(ioo *socketio.Server, srv *http.Server) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ioo.Close(nil)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg := config.Load(*listenAddress)
	kv := stores.GetStore()
	tokens := identity.NewTokens(cfg.JWTSecret)

	s := services{
		kv:         kv,
		tokens:     tokens,
		randomUser: identity.NewRandomUser(cfg.RandomUserURL, nil),
		providers:  identity.Providers(context.Background(), cfg),
		workspaces: workspace.NewRegistry(kv, cfg, weather.NewClient(cfg.Weather, nil)),
		feed:       collab.NewFeed(cfg.ChatBaseURL, nil),
		generator:  textgen.NewGenerator(cfg.TextGen, nil),
		renderer:   export.NewRenderer(export.NewHTTPImageLoader()),
	}

	r := setupRouter(s)

	ioo := websocket.SetupSocketIO(tokens, s.workspaces)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	srv := &http.Server{Addr: cfg.Listen, Handler: r}
	logrus.WithField("addr", cfg.Listen).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo, srv)
}

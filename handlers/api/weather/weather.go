package weather

import (
	"canvas-editor/middleware"
	"canvas-editor/weather"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func Routes(r chi.Router) {
	r.Get("/", HandleGet())
	r.Post("/refresh", HandleRefresh())
}

// HandleGet returns the widget state, fetching it on first use.
func HandleGet() http.HandlerFunc {
	return withState(func(w http.ResponseWriter, r *http.Request, s *weather.State) {
		snap := s.Snapshot()
		if snap.Data == nil && snap.Error == nil && !snap.Loading {
			snap = s.Refresh(r.Context())
		}
		render.JSON(w, r, snap)
	})
}

// HandleRefresh fetches now. A failed fetch still answers 200 with the error
// set and the previous data kept.
func HandleRefresh() http.HandlerFunc {
	return withState(func(w http.ResponseWriter, r *http.Request, s *weather.State) {
		render.JSON(w, r, s.Refresh(r.Context()))
	})
}

func withState(fn func(http.ResponseWriter, *http.Request, *weather.State)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := middleware.CurrentWorkspace(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Workspace not found"})
			return
		}
		fn(w, r, ws.Weather)
	}
}

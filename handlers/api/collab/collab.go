package collab

import (
	"canvas-editor/collab"
	"canvas-editor/core"
	"canvas-editor/middleware"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Routes mounts the collaboration panel endpoints. feed may be nil, in which
// case messages stay local.
func Routes(r chi.Router, feed *collab.Feed) {
	r.Get("/", HandleGet(feed))
	r.Put("/cursors", HandleUpdateCursor())
	r.Delete("/cursors/{userId}", HandleRemoveCursor())
	r.Post("/messages", HandleSendMessage(feed))
	r.Delete("/messages", HandleClearMessages())
}

// HandleGet returns the panel, seeding an empty transcript from the feed.
func HandleGet(feed *collab.Feed) http.HandlerFunc {
	return withSession(func(w http.ResponseWriter, r *http.Request, s *collab.Session, _ core.Profile) {
		if feed != nil {
			feed.Prime(r.Context(), s)
		}
		render.JSON(w, r, s.View())
	})
}

func HandleUpdateCursor() http.HandlerFunc {
	return withSession(func(w http.ResponseWriter, r *http.Request, s *collab.Session, user core.Profile) {
		var pos core.CursorPosition
		if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
			badRequest(w, r, "Invalid cursor position")
			return
		}
		if pos.UserID == "" {
			pos.UserID, pos.UserName = user.ID, user.Name
		}
		s.UpdateCursor(pos)
		render.JSON(w, r, s.View())
	})
}

func HandleRemoveCursor() http.HandlerFunc {
	return withSession(func(w http.ResponseWriter, r *http.Request, s *collab.Session, _ core.Profile) {
		s.RemoveCursor(chi.URLParam(r, "userId"))
		render.JSON(w, r, s.View())
	})
}

// HandleSendMessage posts a message as the signed-in user. With a feed, a
// reply is fetched and appended too.
func HandleSendMessage(feed *collab.Feed) http.HandlerFunc {
	return withSession(func(w http.ResponseWriter, r *http.Request, s *collab.Session, user core.Profile) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			badRequest(w, r, "Invalid message")
			return
		}
		text := strings.TrimSpace(body.Text)
		if text == "" {
			badRequest(w, r, "Message text is required")
			return
		}

		if feed == nil {
			s.AddMessage(user.ID, user.Name, text)
			render.JSON(w, r, s.View())
			return
		}
		if err := feed.Send(r.Context(), s, user, text); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Warn("Chat send failed")
			render.Status(r, http.StatusBadGateway)
		}
		render.JSON(w, r, s.View())
	})
}

func HandleClearMessages() http.HandlerFunc {
	return withSession(func(w http.ResponseWriter, r *http.Request, s *collab.Session, _ core.Profile) {
		s.ClearMessages()
		render.JSON(w, r, s.View())
	})
}

func withSession(fn func(http.ResponseWriter, *http.Request, *collab.Session, core.Profile)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := middleware.CurrentWorkspace(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Workspace not found"})
			return
		}
		fn(w, r, ws.Collab, ws.User)
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, map[string]string{"error": msg})
}

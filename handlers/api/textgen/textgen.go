package textgen

import (
	"canvas-editor/core"
	"canvas-editor/editor"
	"canvas-editor/middleware"
	"canvas-editor/textgen"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type Request struct {
	Prompt    string `json:"prompt"`
	ElementID string `json:"elementId,omitempty"`
}

type Response struct {
	textgen.Result
	// Applied reports whether the text was written into the element.
	Applied bool          `json:"applied"`
	State   *editor.State `json:"state,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

// HandleGenerate produces text for prompt. With an elementId, the text
// replaces that element's content unless the document changed while the
// text was being generated.
func HandleGenerate(gen *textgen.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := middleware.CurrentWorkspace(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Workspace not found"})
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Prompt is required"})
			return
		}

		ticket := ws.Editor.Ticket()
		resp := Response{Result: gen.Generate(r.Context(), req.Prompt)}
		if req.ElementID == "" {
			render.JSON(w, r, resp)
			return
		}

		log := logrus.WithFields(logrus.Fields{"user_id": ws.User.ID, "element_id": req.ElementID})
		patch, err := core.ContentPatch(resp.Text)
		if err == nil {
			err = ws.Editor.CommitElementUpdate(r.Context(), ticket, req.ElementID, patch)
		}
		switch {
		case err == nil:
			resp.Applied = true
		case errors.Is(err, editor.ErrPersist):
			resp.Applied = true
			resp.Warning = "Changes are kept in memory but could not be saved."
		case editor.Silent(err):
			log.WithError(err).Info("Discarded generated text")
		case errors.Is(err, core.ErrInvalidPatch), errors.Is(err, core.ErrInvalidElement):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		default:
			log.WithError(err).Error("Failed to apply generated text")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Internal server error"})
			return
		}

		st := ws.Editor.State()
		resp.State = &st
		render.JSON(w, r, resp)
	}
}

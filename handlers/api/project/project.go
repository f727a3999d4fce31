package project

import (
	"canvas-editor/core"
	"canvas-editor/editor"
	"canvas-editor/middleware"
	"canvas-editor/workspace"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const (
	LastPageNotice = "You must have at least one page in your project."
	SaveWarning    = "Changes are kept in memory but could not be saved."
)

// StateResponse is the editor state plus the outcome notices of the request.
type StateResponse struct {
	editor.State
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Routes mounts the project endpoints. The router must carry the Workspace
// middleware.
func Routes(r chi.Router) {
	r.Get("/", HandleGet())
	r.Post("/", HandleCreate())
	r.Post("/save", HandleSave())
	r.Post("/undo", HandleUndo())
	r.Post("/redo", HandleRedo())

	r.Post("/pages", HandleAddPage())
	r.Put("/pages/current", HandleChangePage())
	r.Delete("/pages/{pageId}", HandleDeletePage())

	r.Post("/elements", HandleAddElement())
	r.Patch("/elements/{id}", HandleUpdateElement())
	r.Delete("/elements/{id}", HandleDeleteElement())
	r.Put("/selection", HandleSelect())
}

func HandleGet() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		respond(w, r, ws, nil)
	})
}

func HandleCreate() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		var body struct {
			Name string `json:"name"`
		}
		if !decode(w, r, &body) {
			return
		}
		if body.Name == "" {
			badRequest(w, r, "Project name is required")
			return
		}
		respond(w, r, ws, ws.Editor.CreateProject(r.Context(), body.Name, ws.User.ID))
	})
}

func HandleSave() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		_, err := ws.Editor.Save(r.Context())
		respond(w, r, ws, err)
	})
}

func HandleUndo() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		_, err := ws.Editor.Undo(r.Context())
		respond(w, r, ws, err)
	})
}

func HandleRedo() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		_, err := ws.Editor.Redo(r.Context())
		respond(w, r, ws, err)
	})
}

func HandleAddPage() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		respond(w, r, ws, ws.Editor.AddPage(r.Context()))
	})
}

func HandleDeletePage() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		respond(w, r, ws, ws.Editor.DeletePage(r.Context(), chi.URLParam(r, "pageId")))
	})
}

func HandleChangePage() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		var body struct {
			Index *int `json:"index"`
		}
		if !decode(w, r, &body) {
			return
		}
		if body.Index == nil {
			badRequest(w, r, "Page index is required")
			return
		}
		respond(w, r, ws, ws.Editor.ChangePage(*body.Index))
	})
}

// elementRequest is either a whole element or just a type, optionally
// positioned, for which the editor defaults are used.
type elementRequest struct {
	ID   string           `json:"id"`
	Type core.ElementType `json:"type"`
	X    *float64         `json:"x"`
	Y    *float64         `json:"y"`
}

func HandleAddElement() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		var raw json.RawMessage
		if !decode(w, r, &raw) {
			return
		}
		var req elementRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			badRequest(w, r, "Invalid element")
			return
		}

		var el core.Element
		if req.ID != "" {
			if err := json.Unmarshal(raw, &el); err != nil {
				badRequest(w, r, err.Error())
				return
			}
		} else {
			zIndex := 1
			if page := ws.Editor.State().ActivePage(); page != nil {
				zIndex = len(page.Elements) + 1
			}
			var err error
			if el, err = defaultElement(req, zIndex); err != nil {
				badRequest(w, r, err.Error())
				return
			}
		}
		respond(w, r, ws, ws.Editor.AddElement(r.Context(), el))
	})
}

// defaultElement places a new element at the requested point or somewhere
// in the top-left 500x500 of the canvas.
func defaultElement(req elementRequest, zIndex int) (core.Element, error) {
	x, y := float64(rand.Intn(500)), float64(rand.Intn(500))
	if req.X != nil {
		x = *req.X
	}
	if req.Y != nil {
		y = *req.Y
	}

	switch req.Type {
	case core.ElementText:
		return core.NewTextElement(x, y, float64(rand.Intn(200)+50), float64(rand.Intn(100)+30), zIndex), nil
	case core.ElementImage:
		return core.NewImageElement(x, y, zIndex), nil
	case core.ElementFlip:
		return core.NewFlipElement(x, y, zIndex), nil
	default:
		return core.Element{}, fmt.Errorf("%w: unknown type %q", core.ErrInvalidElement, req.Type)
	}
}

func HandleUpdateElement() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		var patch core.ElementPatch
		if !decode(w, r, &patch) {
			return
		}
		respond(w, r, ws, ws.Editor.UpdateElement(r.Context(), chi.URLParam(r, "id"), patch))
	})
}

func HandleDeleteElement() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		respond(w, r, ws, ws.Editor.DeleteElement(r.Context(), chi.URLParam(r, "id")))
	})
}

// HandleSelect selects an element on the active page; a null id clears the
// selection.
func HandleSelect() http.HandlerFunc {
	return withWorkspace(func(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace) {
		var body struct {
			ID *string `json:"id"`
		}
		if !decode(w, r, &body) {
			return
		}
		id := ""
		if body.ID != nil {
			id = *body.ID
		}
		respond(w, r, ws, ws.Editor.SelectElement(id))
	})
}

func withWorkspace(fn func(http.ResponseWriter, *http.Request, *workspace.Workspace)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := middleware.CurrentWorkspace(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Workspace not found"})
			return
		}
		fn(w, r, ws)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, r, "Invalid request body")
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, map[string]string{"error": msg})
}

// respond maps the outcome of a mutation onto the response. Silent
// rejections answer with the unchanged state.
func respond(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, err error) {
	resp := StateResponse{State: ws.Editor.State()}
	log := logrus.WithFields(logrus.Fields{"user_id": ws.User.ID, "path": r.URL.Path})

	switch {
	case err == nil:
	case errors.Is(err, editor.ErrLastPage):
		render.Status(r, http.StatusConflict)
		resp.Error = LastPageNotice
	case editor.Silent(err):
		log.WithError(err).Debug("Ignored rejected mutation")
	case errors.Is(err, editor.ErrPersist):
		log.WithError(err).Warn("Mutation applied but not persisted")
		resp.Warning = SaveWarning
	case errors.Is(err, core.ErrInvalidElement),
		errors.Is(err, core.ErrInvalidPatch),
		errors.Is(err, core.ErrMalformedRecord),
		errors.Is(err, editor.ErrDuplicateElement):
		badRequest(w, r, err.Error())
		return
	case errors.Is(err, editor.ErrNoProject):
		render.Status(r, http.StatusConflict)
		resp.Error = "No project is open"
	default:
		log.WithError(err).Error("Mutation failed")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Internal server error"})
		return
	}
	render.JSON(w, r, resp)
}

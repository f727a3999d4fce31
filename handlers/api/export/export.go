package export

import (
	"canvas-editor/core"
	"canvas-editor/export"
	"canvas-editor/middleware"
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

func Routes(r chi.Router, renderer *export.Renderer) {
	r.Get("/png", HandlePage(renderer, "png"))
	r.Get("/pdf", HandlePage(renderer, "pdf"))
	r.Get("/pdf/all", HandleAllPages(renderer))
}

// HandlePage exports one page as png or pdf. The page query parameter is a
// zero-based index and defaults to the active page.
func HandlePage(renderer *export.Renderer, format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := middleware.CurrentWorkspace(r.Context())
		if !ok {
			fail(w, r, http.StatusUnauthorized, "Workspace not found")
			return
		}
		st := ws.Editor.State()
		if st.Project == nil {
			fail(w, r, http.StatusConflict, "No project is open")
			return
		}

		index := st.CurrentPageIndex
		if q := r.URL.Query().Get("page"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 0 || n >= len(st.Project.Pages) {
				fail(w, r, http.StatusBadRequest, "Invalid page index")
				return
			}
			index = n
		}
		page := st.Project.Pages[index]

		var (
			encode func(context.Context, core.Page) ([]byte, error)
			ctype  string
		)
		switch format {
		case "png":
			encode, ctype = renderer.PNG, "image/png"
		default:
			encode, ctype = renderer.PDF, "application/pdf"
		}

		data, err := encode(r.Context(), page)
		if err != nil {
			logrus.WithError(err).WithField("page_id", page.ID).Error("Export failed")
			fail(w, r, http.StatusInternalServerError, "Failed to export canvas")
			return
		}
		send(w, ctype, fmt.Sprintf("%s-page-%d.%s", st.Project.Name, index+1, format), data)
	}
}

func HandleAllPages(renderer *export.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := middleware.CurrentWorkspace(r.Context())
		if !ok {
			fail(w, r, http.StatusUnauthorized, "Workspace not found")
			return
		}
		st := ws.Editor.State()
		if st.Project == nil {
			fail(w, r, http.StatusConflict, "No project is open")
			return
		}

		data, err := renderer.MultiPagePDF(r.Context(), st.Project.Pages)
		if err != nil {
			logrus.WithError(err).WithField("project_id", st.Project.ID).Error("Export failed")
			fail(w, r, http.StatusInternalServerError, "Failed to export canvas")
			return
		}
		send(w, "application/pdf", st.Project.Name+"-all-pages.pdf", data)
	}
}

func send(w http.ResponseWriter, ctype, filename string, data []byte) {
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

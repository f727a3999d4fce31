package textgen

import (
	"canvas-editor/config"
	"canvas-editor/core"
	"canvas-editor/handlers/api/apitest"
	"canvas-editor/textgen"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completion = `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"A bright idea"},"finish_reason":"stop"}]}`

func newHarness(t *testing.T, onGenerate func()) *apitest.Harness {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onGenerate != nil {
			onGenerate()
		}
		w.Write([]byte(completion))
	}))
	t.Cleanup(srv.Close)

	gen := textgen.NewGenerator(config.TextGenConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"}, srv.Client())
	return apitest.New(t, nil, "/api/v1/textgen", func(r chi.Router) { r.Post("/", HandleGenerate(gen)) })
}

func addText(t *testing.T, h *apitest.Harness) string {
	t.Helper()
	el := core.NewTextElement(0, 0, 100, 40, 1)
	require.NoError(t, h.Workspace().Editor.AddElement(context.Background(), el))
	return el.ID
}

func TestGenerate(t *testing.T) {
	h := newHarness(t, nil)

	var resp Response
	rec := h.Do(http.MethodPost, "/api/v1/textgen/", Request{Prompt: "write"})
	require.Equal(t, http.StatusOK, rec.Code)
	h.Decode(rec, &resp)
	assert.Equal(t, "A bright idea", resp.Text)
	assert.Equal(t, textgen.SourceModel, resp.Source)
	assert.False(t, resp.Applied)
	assert.Nil(t, resp.State)

	rec = h.Do(http.MethodPost, "/api/v1/textgen/", Request{Prompt: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_AppliesToElement(t *testing.T) {
	h := newHarness(t, nil)
	id := addText(t, h)

	var resp Response
	h.Decode(h.Do(http.MethodPost, "/api/v1/textgen/", Request{Prompt: "write", ElementID: id}), &resp)
	require.True(t, resp.Applied)
	require.NotNil(t, resp.State)
	el := resp.State.ActivePage().Elements[0]
	assert.Equal(t, "A bright idea", el.Payload.(*core.TextPayload).Content)
	assert.True(t, resp.State.CanUndo)
}

func TestGenerate_DiscardedWhenDocumentMoved(t *testing.T) {
	var h *apitest.Harness
	h = newHarness(t, func() {
		h.Workspace().Editor.AddPage(context.Background())
	})
	id := addText(t, h)

	var resp Response
	rec := h.Do(http.MethodPost, "/api/v1/textgen/", Request{Prompt: "write", ElementID: id})
	require.Equal(t, http.StatusOK, rec.Code)
	h.Decode(rec, &resp)
	assert.False(t, resp.Applied)
	assert.Equal(t, "A bright idea", resp.Text)

	page := resp.State.Project.Pages[0]
	assert.Equal(t, "New Text Element", page.Elements[0].Payload.(*core.TextPayload).Content)
}

func TestGenerate_FlipElementRejectsText(t *testing.T) {
	h := newHarness(t, nil)
	flip := core.NewFlipElement(0, 0, 1)
	require.NoError(t, h.Workspace().Editor.AddElement(context.Background(), flip))

	rec := h.Do(http.MethodPost, "/api/v1/textgen/", Request{Prompt: "write", ElementID: flip.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

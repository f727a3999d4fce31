package export

import (
	"bytes"
	"canvas-editor/core"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/fogleman/gg"
)

// stubLoader serves a solid image, or fails when err is set.
type stubLoader struct {
	fill color.Color
	err  error
}

func (s stubLoader) Load(ctx context.Context, url string) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, s.fill)
		}
	}
	return img, nil
}

func rect(id string, x, y, w, h float64, z int, payload core.Payload) core.Element {
	return core.Element{ID: id, X: x, Y: y, Width: w, Height: h, ZIndex: z, Payload: payload}
}

func imagePayload(url string) *core.ImagePayload {
	return &core.ImagePayload{URL: url, Style: core.ImageStyle{ObjectFit: "fill", Opacity: 1}}
}

func pixel(img image.Image, x, y float64) color.RGBA {
	r, g, b, a := img.At(int(x*Scale), int(y*Scale)).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func TestRender_Background(t *testing.T) {
	r := NewRenderer(stubLoader{fill: color.Black})
	img, err := r.Render(context.Background(), core.Page{ID: "p", Background: "#ff0000"})
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != CanvasWidth*Scale || b.Dy() != CanvasHeight*Scale {
		t.Errorf("unexpected bounds %v", b)
	}
	if got := pixel(img, 10, 10); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("background pixel = %v", got)
	}
}

func TestRender_ZIndexOrder(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	ctx := context.Background()

	// Stored order is the reverse of paint order.
	page := core.Page{ID: "p", Elements: []core.Element{
		rect("top", 100, 100, 50, 50, 2, imagePayload("top")),
		rect("bottom", 100, 100, 50, 50, 1, imagePayload("bottom")),
	}}

	r := NewRenderer(loaderByID{"top": red, "bottom": blue})
	img, err := r.Render(ctx, page)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if got := pixel(img, 125, 125); got != red {
		t.Errorf("higher zIndex should be painted last, got %v", got)
	}
}

// loaderByID answers with a colour chosen by the URL.
type loaderByID map[string]color.RGBA

func (l loaderByID) Load(ctx context.Context, url string) (image.Image, error) {
	return stubLoader{fill: l[url]}.Load(ctx, url)
}

func TestRender_ImageFailureDrawsPlaceholder(t *testing.T) {
	r := NewRenderer(stubLoader{err: errors.New("offline")})
	page := core.Page{ID: "p", Background: "#ffffff", Elements: []core.Element{
		rect("img", 10, 10, 100, 100, 1, imagePayload("stub")),
	}}

	img, err := r.Render(context.Background(), page)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if got := pixel(img, 50, 50); got == (color.RGBA{255, 255, 255, 255}) {
		t.Error("missing image should leave a placeholder")
	}
}

func TestRender_TextAndFlip(t *testing.T) {
	r := NewRenderer(stubLoader{fill: color.Black})
	text := core.NewTextElement(10, 10, 300, 80, 1)
	text.Payload.(*core.TextPayload).Style.FontSize = 48
	text.Payload.(*core.TextPayload).Content = "WWWW"
	flip := core.NewFlipElement(400, 100, 2)
	flip.Payload.(*core.FlipPayload).Flipped = true

	page := core.Page{ID: "p", Background: "#ffffff", Elements: []core.Element{text, flip}}
	img, err := r.Render(context.Background(), page)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}

	dark := false
	for y := 10.0; y < 90 && !dark; y++ {
		for x := 10.0; x < 200; x++ {
			if c := pixel(img, x, y); c.R < 128 {
				dark = true
				break
			}
		}
	}
	if !dark {
		t.Error("text was not drawn")
	}
	if got := pixel(img, 500, 200); got == (color.RGBA{255, 255, 255, 255}) {
		t.Error("flipped card should use the back-face fill")
	}
}

func TestFitImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for _, fit := range []string{"cover", "contain", "fill", ""} {
		got := fitImage(src, 100, 100, fit)
		if b := got.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
			t.Errorf("fit %q: bounds %v", fit, b)
		}
	}
}

func TestPNG(t *testing.T) {
	r := NewRenderer(stubLoader{fill: color.Black})
	data, err := r.PNG(context.Background(), core.NewPage("Page 1"))
	if err != nil {
		t.Fatalf("PNG() failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != CanvasWidth*Scale {
		t.Errorf("unexpected width %d", img.Bounds().Dx())
	}
}

func TestPDF(t *testing.T) {
	r := NewRenderer(stubLoader{fill: color.Black})
	ctx := context.Background()

	single, err := r.PDF(ctx, core.NewPage("Page 1"))
	if err != nil {
		t.Fatalf("PDF() failed: %v", err)
	}
	if !bytes.HasPrefix(single, []byte("%PDF-")) {
		t.Error("PDF() output is not a PDF")
	}

	multi, err := r.MultiPagePDF(ctx, []core.Page{core.NewPage("Page 1"), core.NewPage("Page 2"), core.NewPage("Page 3")})
	if err != nil {
		t.Fatalf("MultiPagePDF() failed: %v", err)
	}
	if n := bytes.Count(multi, []byte("/Type /Page")) - bytes.Count(multi, []byte("/Type /Pages")); n != 3 {
		t.Errorf("expected 3 pages, found %d", n)
	}
}

func TestMultiPagePDF_Empty(t *testing.T) {
	r := NewRenderer(stubLoader{})
	if _, err := r.MultiPagePDF(context.Background(), nil); !errors.Is(err, ErrNoPages) {
		t.Errorf("MultiPagePDF(nil) error = %v, want ErrNoPages", err)
	}
}

func TestSetHex(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#000000", color.RGBA{0, 0, 0, 255}},
		{"#ff8800", color.RGBA{255, 136, 0, 255}},
		{"#fff", color.RGBA{255, 255, 255, 255}},
		{" #0000ff ", color.RGBA{0, 0, 255, 255}},
		{"red", color.RGBA{255, 255, 255, 255}},
		{"#zzzzzz", color.RGBA{255, 255, 255, 255}},
		{"", color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		dc := gg.NewContext(1, 1)
		setHex(dc, tt.in, color.White)
		dc.Clear()
		if got := pixel(dc.Image(), 0, 0); got != tt.want {
			t.Errorf("setHex(%q) painted %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRender_ImageOpacity(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	ctx := context.Background()
	r := NewRenderer(stubLoader{fill: color.Black})

	hidden := imagePayload("stub")
	hidden.Style.Opacity = 0
	page := core.Page{ID: "p", Background: "#ffffff", Elements: []core.Element{rect("img", 10, 10, 100, 100, 1, hidden)}}
	img, err := r.Render(ctx, page)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if got := pixel(img, 60, 60); got != white {
		t.Errorf("opacity 0 painted %v", got)
	}

	half := imagePayload("stub")
	half.Style.Opacity = 0.5
	page.Elements = []core.Element{rect("img", 10, 10, 100, 100, 1, half)}
	img, err = r.Render(ctx, page)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if got := pixel(img, 60, 60); got.R < 100 || got.R > 155 {
		t.Errorf("opacity 0.5 painted %v, want mid grey", got)
	}
}

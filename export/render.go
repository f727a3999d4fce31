package export

import (
	"bytes"
	"canvas-editor/core"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	_ "golang.org/x/image/webp"
)

// Canvas size in CSS pixels. Exports are rendered at Scale times that.
const (
	CanvasWidth  = 800
	CanvasHeight = 600
	Scale        = 2
)

// ImageLoader resolves image element URLs.
type ImageLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// Renderer draws pages the way the editor canvas shows them.
type Renderer struct {
	images ImageLoader

	fontOnce sync.Once
	regular  *truetype.Font
	bold     *truetype.Font
	fontErr  error
}

func NewRenderer(images ImageLoader) *Renderer {
	if images == nil {
		images = NewHTTPImageLoader()
	}
	return &Renderer{images: images}
}

func (r *Renderer) loadFonts() error {
	r.fontOnce.Do(func() {
		if r.regular, r.fontErr = truetype.Parse(goregular.TTF); r.fontErr != nil {
			return
		}
		r.bold, r.fontErr = truetype.Parse(gobold.TTF)
	})
	return r.fontErr
}

// Render draws page onto a white-backed image of the canvas size. Elements
// are painted in ascending ZIndex; ties keep their stored order.
func (r *Renderer) Render(ctx context.Context, page core.Page) (image.Image, error) {
	if err := r.loadFonts(); err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	dc := gg.NewContext(CanvasWidth*Scale, CanvasHeight*Scale)
	setHex(dc, page.Background, color.White)
	dc.Clear()
	dc.Scale(Scale, Scale)

	elements := append([]core.Element(nil), page.Elements...)
	sort.SliceStable(elements, func(i, j int) bool { return elements[i].ZIndex < elements[j].ZIndex })

	for _, el := range elements {
		switch p := el.Payload.(type) {
		case *core.TextPayload:
			r.drawText(dc, el, p)
		case *core.ImagePayload:
			r.drawImage(ctx, dc, el, p)
		case *core.FlipPayload:
			r.drawFlip(dc, el, p)
		}
	}
	return dc.Image(), nil
}

// PNG renders page and encodes it.
func (r *Renderer) PNG(ctx context.Context, page core.Page) ([]byte, error) {
	img, err := r.Render(ctx, page)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"page_id":  page.ID,
		"elements": len(page.Elements),
		"size":     humanize.Bytes(uint64(buf.Len())),
	}).Info("Exported page as PNG")
	return buf.Bytes(), nil
}

func (r *Renderer) face(style core.TextStyle) font.Face {
	f := r.regular
	if isBold(style.FontWeight) {
		f = r.bold
	}
	size := style.FontSize
	if size <= 0 {
		size = 16
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size * Scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func (r *Renderer) drawText(dc *gg.Context, el core.Element, p *core.TextPayload) {
	dc.Push()
	defer dc.Pop()

	dc.DrawRectangle(el.X, el.Y, el.Width, el.Height)
	dc.Clip()

	// Faces are sized in device pixels; text is laid out unscaled.
	dc.Scale(1.0/Scale, 1.0/Scale)
	dc.SetFontFace(r.face(p.Style))
	setHex(dc, p.Style.Color, color.Black)

	align, ax := gg.AlignLeft, 0.0
	x := el.X * Scale
	switch p.Style.TextAlign {
	case "center":
		align, ax, x = gg.AlignCenter, 0.5, (el.X+el.Width/2)*Scale
	case "right":
		align, ax, x = gg.AlignRight, 1, (el.X+el.Width)*Scale
	}
	dc.DrawStringWrapped(p.Content, x, el.Y*Scale, ax, 0, el.Width*Scale, 1.2, align)
	dc.ResetClip()
}

func (r *Renderer) drawImage(ctx context.Context, dc *gg.Context, el core.Element, p *core.ImagePayload) {
	w, h := int(el.Width*Scale), int(el.Height*Scale)
	opacity := min(p.Style.Opacity, 1)
	if w <= 0 || h <= 0 || opacity <= 0 {
		return
	}
	log := logrus.WithFields(logrus.Fields{"element_id": el.ID, "url": p.URL})

	src, err := r.images.Load(ctx, p.URL)
	if err != nil {
		log.WithError(err).Warn("Image unavailable, drawing placeholder")
		dc.SetRGB(0.9, 0.9, 0.9)
		dc.DrawRoundedRectangle(el.X, el.Y, el.Width, el.Height, p.Style.BorderRadius)
		dc.Fill()
		return
	}

	tile := fitImage(src, w, h, p.Style.ObjectFit)

	mask := gg.NewContext(w, h)
	mask.SetRGBA(0, 0, 0, opacity)
	mask.DrawRoundedRectangle(0, 0, float64(w), float64(h), p.Style.BorderRadius*Scale)
	mask.Fill()

	dst, ok := dc.Image().(*image.RGBA)
	if !ok {
		return
	}
	origin := image.Pt(int(el.X*Scale), int(el.Y*Scale))
	draw.DrawMask(dst, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}, tile, image.Point{}, mask.Image(), image.Point{}, draw.Over)
}

// fitImage scales src into a w x h tile following CSS object-fit.
func fitImage(src image.Image, w, h int, fit string) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	if sw == 0 || sh == 0 {
		return dst
	}

	switch fit {
	case "fill":
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	case "contain":
		ratio := min(float64(w)/sw, float64(h)/sh)
		tw, th := int(sw*ratio), int(sh*ratio)
		x0, y0 := (w-tw)/2, (h-th)/2
		draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+tw, y0+th), src, sb, draw.Over, nil)
	default:
		// cover: crop the source to the tile's aspect ratio around its centre.
		ratio := max(float64(w)/sw, float64(h)/sh)
		cw, ch := int(float64(w)/ratio), int(float64(h)/ratio)
		x0 := sb.Min.X + (sb.Dx()-cw)/2
		y0 := sb.Min.Y + (sb.Dy()-ch)/2
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cw, y0+ch), draw.Over, nil)
	}
	return dst
}

func (r *Renderer) drawFlip(dc *gg.Context, el core.Element, p *core.FlipPayload) {
	text := p.Content.Front
	fill := color.RGBA{0xff, 0xff, 0xff, 0xff}
	if p.Flipped {
		text = p.Content.Back
		fill = color.RGBA{0xf1, 0xf5, 0xf9, 0xff}
	}

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(el.X, el.Y, el.Width, el.Height, 6)
	dc.Fill()
	dc.SetColor(color.RGBA{0xe2, 0xe8, 0xf0, 0xff})
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(el.X, el.Y, el.Width, el.Height, 6)
	dc.Stroke()

	dc.Push()
	defer dc.Pop()
	dc.DrawRectangle(el.X, el.Y, el.Width, el.Height)
	dc.Clip()
	dc.Scale(1.0/Scale, 1.0/Scale)
	dc.SetFontFace(r.face(core.TextStyle{FontSize: 14}))
	dc.SetColor(color.Black)
	const pad = 16
	dc.DrawStringWrapped(text, (el.X+el.Width/2)*Scale, (el.Y+el.Height/2)*Scale, 0.5, 0.5, (el.Width-2*pad)*Scale, 1.2, gg.AlignCenter)
	dc.ResetClip()
}

// setHex selects a #rgb, #rrggbb or #rrggbbaa colour, or fallback for
// anything else.
func setHex(dc *gg.Context, s string, fallback color.Color) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3, 6, 8:
		if _, err := strconv.ParseUint(hex, 16, 32); err == nil {
			dc.SetHexColor(hex)
			return
		}
	}
	dc.SetColor(fallback)
}

func isBold(weight string) bool {
	switch weight {
	case "bold", "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}

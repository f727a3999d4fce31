package export

import (
	"bytes"
	"canvas-editor/core"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"
)

var ErrNoPages = errors.New("no pages to export")

// PDF renders page onto a single landscape PDF page of the same size.
func (r *Renderer) PDF(ctx context.Context, page core.Page) ([]byte, error) {
	img, err := r.PNG(ctx, page)
	if err != nil {
		return nil, err
	}

	w, h := float64(CanvasWidth*Scale), float64(CanvasHeight*Scale)
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: h, Ht: w},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()
	addImage(pdf, page.ID, img, 0, 0, w, h)

	return output(pdf, 1)
}

// MultiPagePDF puts every page on its own A4 landscape sheet, scaled to fit
// and centred.
func (r *Renderer) MultiPagePDF(ctx context.Context, pages []core.Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)

	imgW, imgH := float64(CanvasWidth*Scale), float64(CanvasHeight*Scale)
	for i, page := range pages {
		img, err := r.PNG(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pdf.AddPage()
		pageW, pageH := pdf.GetPageSize()
		ratio := min(pageW/imgW, pageH/imgH)
		w, h := imgW*ratio, imgH*ratio
		addImage(pdf, page.ID+"-"+strconv.Itoa(i), img, (pageW-w)/2, (pageH-h)/2, w, h)
	}

	return output(pdf, len(pages))
}

func addImage(pdf *fpdf.Fpdf, name string, png []byte, x, y, w, h float64) {
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
}

func output(pdf *fpdf.Fpdf, pages int) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"pages": pages,
		"size":  humanize.Bytes(uint64(buf.Len())),
	}).Info("Exported PDF")
	return buf.Bytes(), nil
}

package core

import "github.com/google/uuid"

const (
	DefaultBackground = "#ffffff"
	DefaultImageURL   = "https://picsum.photos/200/200"
)

// NewPage returns an empty page with the default white background.
func NewPage(name string) Page {
	return Page{
		ID:         uuid.NewString(),
		Name:       name,
		Elements:   []Element{},
		Background: DefaultBackground,
	}
}

// NewTextElement returns a text element carrying the editor's default style.
func NewTextElement(x, y, width, height float64, zIndex int) Element {
	return Element{
		ID:     uuid.NewString(),
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
		ZIndex: zIndex,
		Payload: &TextPayload{
			Content: "New Text Element",
			Style: TextStyle{
				FontFamily: "Arial",
				FontSize:   16,
				FontWeight: "normal",
				Color:      "#000000",
				TextAlign:  "left",
			},
		},
	}
}

func NewImageElement(x, y float64, zIndex int) Element {
	return Element{
		ID:     uuid.NewString(),
		X:      x,
		Y:      y,
		Width:  200,
		Height: 200,
		ZIndex: zIndex,
		Payload: &ImagePayload{
			URL: DefaultImageURL,
			Style: ImageStyle{
				ObjectFit:    "cover",
				Opacity:      1,
				BorderRadius: 0,
			},
		},
	}
}

func NewFlipElement(x, y float64, zIndex int) Element {
	return Element{
		ID:     uuid.NewString(),
		X:      x,
		Y:      y,
		Width:  200,
		Height: 200,
		ZIndex: zIndex,
		Payload: &FlipPayload{
			Content: FlipContent{Front: "Front content", Back: "Back content"},
		},
	}
}

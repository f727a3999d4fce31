package core

import (
	"encoding/json"
	"fmt"
	"time"
)

type ElementType string

const (
	ElementText  ElementType = "text"
	ElementImage ElementType = "image"
	ElementFlip  ElementType = "flip"
)

type (
	// Project is the top-level saved document. It always holds at least one page.
	Project struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		Pages         []Page    `json:"pages"`
		CreatedAt     time.Time `json:"createdAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
		CreatedBy     string    `json:"createdBy"`
		Collaborators []string  `json:"collaborators"`
	}

	// Page is a canvas surface. Render order is driven by element ZIndex,
	// not by the position of the element in Elements.
	Page struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		Elements   []Element `json:"elements"`
		Background string    `json:"background"`
	}

	// Element is a positioned object on a page. The type-specific part lives in
	// Payload, which must be one of *TextPayload, *ImagePayload or *FlipPayload.
	Element struct {
		ID      string
		X       float64
		Y       float64
		Width   float64
		Height  float64
		ZIndex  int
		Payload Payload
	}

	// Payload is the variant part of an Element. The set of implementations is
	// closed to this package.
	Payload interface {
		Type() ElementType
		clone() Payload
	}

	TextStyle struct {
		FontFamily string  `json:"fontFamily"`
		FontSize   float64 `json:"fontSize"`
		FontWeight string  `json:"fontWeight"`
		Color      string  `json:"color"`
		TextAlign  string  `json:"textAlign"`
	}

	ImageStyle struct {
		ObjectFit    string  `json:"objectFit"`
		Opacity      float64 `json:"opacity"`
		BorderRadius float64 `json:"borderRadius"`
	}

	FlipContent struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}

	TextPayload struct {
		Content string
		Style   TextStyle
	}

	ImagePayload struct {
		URL   string
		Style ImageStyle
	}

	FlipPayload struct {
		Content FlipContent
		Flipped bool
	}
)

func (*TextPayload) Type() ElementType  { return ElementText }
func (*ImagePayload) Type() ElementType { return ElementImage }
func (*FlipPayload) Type() ElementType  { return ElementFlip }

func (p *TextPayload) clone() Payload  { c := *p; return &c }
func (p *ImagePayload) clone() Payload { c := *p; return &c }
func (p *FlipPayload) clone() Payload  { c := *p; return &c }

// Type returns the element's variant tag. An element without a payload has no
// valid type and reports the empty string.
func (e *Element) Type() ElementType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Type()
}

// Validate checks the invariants every stored element must satisfy.
func (e *Element) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: element id is required", ErrInvalidElement)
	}
	if e.Payload == nil {
		return fmt.Errorf("%w: element %s has no payload", ErrInvalidElement, e.ID)
	}
	if e.Width <= 0 || e.Height <= 0 {
		return fmt.Errorf("%w: element %s must have a positive size", ErrInvalidElement, e.ID)
	}
	return nil
}

func (e Element) Clone() Element {
	c := e
	if e.Payload != nil {
		c.Payload = e.Payload.clone()
	}
	return c
}

func (p Page) Clone() Page {
	c := p
	c.Elements = make([]Element, len(p.Elements))
	for i, el := range p.Elements {
		c.Elements[i] = el.Clone()
	}
	return c
}

// Clone returns a deep copy of the project. History snapshots rely on the copy
// sharing no memory with the original.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Pages = make([]Page, len(p.Pages))
	for i, page := range p.Pages {
		c.Pages[i] = page.Clone()
	}
	c.Collaborators = make([]string, len(p.Collaborators))
	copy(c.Collaborators, p.Collaborators)
	return &c
}

func (p *Project) PageIndex(pageID string) int {
	for i := range p.Pages {
		if p.Pages[i].ID == pageID {
			return i
		}
	}
	return -1
}

func (p *Page) ElementIndex(elementID string) int {
	for i := range p.Elements {
		if p.Elements[i].ID == elementID {
			return i
		}
	}
	return -1
}

// elementWire is the flat JSON shape elements are stored and served in.
type elementWire struct {
	ID      string          `json:"id"`
	Type    ElementType     `json:"type"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Width   float64         `json:"width"`
	Height  float64         `json:"height"`
	ZIndex  int             `json:"zIndex"`
	Content json.RawMessage `json:"content"`
	Style   json.RawMessage `json:"style,omitempty"`
	Flipped *bool           `json:"flipped,omitempty"`
}

func (e Element) MarshalJSON() ([]byte, error) {
	w := elementWire{
		ID:     e.ID,
		Type:   e.Type(),
		X:      e.X,
		Y:      e.Y,
		Width:  e.Width,
		Height: e.Height,
		ZIndex: e.ZIndex,
	}

	var content, style any
	switch p := e.Payload.(type) {
	case *TextPayload:
		content, style = p.Content, p.Style
	case *ImagePayload:
		content, style = p.URL, p.Style
	case *FlipPayload:
		content = p.Content
		flipped := p.Flipped
		w.Flipped = &flipped
	default:
		return nil, fmt.Errorf("element %s has no payload", e.ID)
	}

	var err error
	if w.Content, err = json.Marshal(content); err != nil {
		return nil, err
	}
	if style != nil {
		if w.Style, err = json.Marshal(style); err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var w elementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = Element{
		ID:     w.ID,
		X:      w.X,
		Y:      w.Y,
		Width:  w.Width,
		Height: w.Height,
		ZIndex: w.ZIndex,
	}

	switch w.Type {
	case ElementText:
		p := &TextPayload{}
		if err := decodeOptional(w.Content, &p.Content); err != nil {
			return fmt.Errorf("text content: %w", err)
		}
		if err := decodeOptional(w.Style, &p.Style); err != nil {
			return fmt.Errorf("text style: %w", err)
		}
		e.Payload = p
	case ElementImage:
		// Opacity is 1 unless the record says otherwise.
		p := &ImagePayload{Style: ImageStyle{Opacity: 1}}
		if err := decodeOptional(w.Content, &p.URL); err != nil {
			return fmt.Errorf("image content: %w", err)
		}
		if err := decodeOptional(w.Style, &p.Style); err != nil {
			return fmt.Errorf("image style: %w", err)
		}
		e.Payload = p
	case ElementFlip:
		p := &FlipPayload{}
		if err := decodeOptional(w.Content, &p.Content); err != nil {
			return fmt.Errorf("flip content: %w", err)
		}
		if w.Flipped != nil {
			p.Flipped = *w.Flipped
		}
		e.Payload = p
	default:
		return fmt.Errorf("%w: unknown element type %q", ErrInvalidElement, w.Type)
	}
	return nil
}

func decodeOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

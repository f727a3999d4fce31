package core

import (
	"encoding/json"
	"fmt"
)

// ElementPatch is a partial update of an element. Nil fields are left alone.
// Content and Style are kept raw because their shape depends on the element's
// variant, which is only known when the patch is applied.
type ElementPatch struct {
	X       *float64        `json:"x,omitempty"`
	Y       *float64        `json:"y,omitempty"`
	Width   *float64        `json:"width,omitempty"`
	Height  *float64        `json:"height,omitempty"`
	ZIndex  *int            `json:"zIndex,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Style   json.RawMessage `json:"style,omitempty"`
	Flipped *bool           `json:"flipped,omitempty"`

	// ID and Type are accepted so clients can send whole elements back, but
	// they must match the target element.
	ID   string      `json:"id,omitempty"`
	Type ElementType `json:"type,omitempty"`
}

func (p *ElementPatch) Empty() bool {
	return p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil && p.ZIndex == nil &&
		len(p.Content) == 0 && len(p.Style) == 0 && p.Flipped == nil
}

// ContentPatch builds a patch that only replaces an element's content.
func ContentPatch(content any) (ElementPatch, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return ElementPatch{}, err
	}
	return ElementPatch{Content: raw}, nil
}

// Apply returns a copy of el with the patch merged in. el is never modified, so
// a failed patch leaves no trace.
func (p *ElementPatch) Apply(el Element) (Element, error) {
	if p.ID != "" && p.ID != el.ID {
		return el, fmt.Errorf("%w: id cannot change from %s to %s", ErrInvalidPatch, el.ID, p.ID)
	}
	if p.Type != "" && p.Type != el.Type() {
		return el, fmt.Errorf("%w: type cannot change from %s to %s", ErrInvalidPatch, el.Type(), p.Type)
	}

	next := el.Clone()
	if p.X != nil {
		next.X = *p.X
	}
	if p.Y != nil {
		next.Y = *p.Y
	}
	if p.Width != nil {
		next.Width = *p.Width
	}
	if p.Height != nil {
		next.Height = *p.Height
	}
	if p.ZIndex != nil {
		next.ZIndex = *p.ZIndex
	}

	switch payload := next.Payload.(type) {
	case *TextPayload:
		if p.Flipped != nil {
			return el, fmt.Errorf("%w: text elements cannot be flipped", ErrInvalidPatch)
		}
		if err := decodeOptional(p.Content, &payload.Content); err != nil {
			return el, fmt.Errorf("%w: text content: %v", ErrInvalidPatch, err)
		}
		if err := decodeOptional(p.Style, &payload.Style); err != nil {
			return el, fmt.Errorf("%w: text style: %v", ErrInvalidPatch, err)
		}
	case *ImagePayload:
		if p.Flipped != nil {
			return el, fmt.Errorf("%w: image elements cannot be flipped", ErrInvalidPatch)
		}
		if err := decodeOptional(p.Content, &payload.URL); err != nil {
			return el, fmt.Errorf("%w: image content: %v", ErrInvalidPatch, err)
		}
		if err := decodeOptional(p.Style, &payload.Style); err != nil {
			return el, fmt.Errorf("%w: image style: %v", ErrInvalidPatch, err)
		}
	case *FlipPayload:
		if len(p.Style) > 0 && string(p.Style) != "null" {
			return el, fmt.Errorf("%w: flip elements have no style", ErrInvalidPatch)
		}
		if err := decodeOptional(p.Content, &payload.Content); err != nil {
			return el, fmt.Errorf("%w: flip content: %v", ErrInvalidPatch, err)
		}
		if p.Flipped != nil {
			payload.Flipped = *p.Flipped
		}
	default:
		return el, fmt.Errorf("%w: element %s has no payload", ErrInvalidElement, el.ID)
	}

	if err := next.Validate(); err != nil {
		return el, err
	}
	return next, nil
}

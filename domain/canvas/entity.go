package canvas

import (
	"slices"
	"time"
)

// Kind identifies what an element draws.
type Kind string

// Element kinds.
const (
	KindFreehand Kind = "freehand-stroke"
	KindText     Kind = "text-label"
	KindShape    Kind = "shape"
	KindImage    Kind = "image"
)

// Valid reports whether k is one of the recognized element kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFreehand, KindText, KindShape, KindImage:
		return true
	}
	return false
}

// ShapeVariant selects the geometry of a shape element.
type ShapeVariant string

// Shape variants.
const (
	ShapeRectangle ShapeVariant = "rectangle"
	ShapeCircle    ShapeVariant = "circle"
	ShapeLine      ShapeVariant = "line"
)

// Valid reports whether v is a recognized shape variant.
func (v ShapeVariant) Valid() bool {
	switch v {
	case ShapeRectangle, ShapeCircle, ShapeLine:
		return true
	}
	return false
}

// Point is a position on the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Element is a single drawn item in a room's document.
type Element struct {
	ID           string       `json:"id"`
	Kind         Kind         `json:"kind"`
	X            float64      `json:"x"`
	Y            float64      `json:"y"`
	Width        *float64     `json:"width,omitempty"`
	Height       *float64     `json:"height,omitempty"`
	Points       []Point      `json:"points,omitempty"`
	Text         string       `json:"text,omitempty"`
	Src          string       `json:"src,omitempty"`
	StrokeColor  string       `json:"strokeColor"`
	FillColor    string       `json:"fillColor,omitempty"`
	StrokeWidth  float64      `json:"strokeWidth"`
	ShapeVariant ShapeVariant `json:"shapeVariant,omitempty"`
	FontSize     *float64     `json:"fontSize,omitempty"`
	FontFamily   string       `json:"fontFamily,omitempty"`
	CreatedAt    int64        `json:"createdAt"`
	Author       string       `json:"author"`
	Complete     bool         `json:"complete"`
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	c := e
	c.Width = clonePtr(e.Width)
	c.Height = clonePtr(e.Height)
	c.FontSize = clonePtr(e.FontSize)
	c.Points = slices.Clone(e.Points)
	return c
}

func clonePtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Room is a collaboration session with its own document.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner"`
	CreatedAt    time.Time `json:"createdAt"`
	Elements     []Element `json:"elements"`
	Participants []string  `json:"participants"`
}

// IndexOf returns the position of the element with the given id, or -1.
func (r *Room) IndexOf(elementID string) int {
	for i := range r.Elements {
		if r.Elements[i].ID == elementID {
			return i
		}
	}
	return -1
}

// HasParticipant reports whether connID is in the persisted participant set.
func (r *Room) HasParticipant(connID string) bool {
	return slices.Contains(r.Participants, connID)
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	c := *r
	c.Elements = make([]Element, len(r.Elements))
	for i, el := range r.Elements {
		c.Elements[i] = el.Clone()
	}
	c.Participants = slices.Clone(r.Participants)
	return &c
}

// CursorState tells observers whether a participant has moved their cursor.
type CursorState string

// Cursor states.
const (
	CursorNone    CursorState = "none"
	CursorActive  CursorState = "active"
	CursorStopped CursorState = "stopped"
)

// Participant is a connected client's presence in a room. It is never persisted.
type Participant struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	RoomID      string      `json:"roomId"`
	Cursor      *Point      `json:"cursor,omitempty"`
	CursorState CursorState `json:"cursorState"`
	JoinedAt    time.Time   `json:"joinedAt"`
}

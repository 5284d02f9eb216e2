package canvas

import (
	"context"
	"encoding/json"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
)

// Client to server event types.
const (
	EventJoin            = "join"
	EventCreateElement   = "create-element"
	EventUpdateElement   = "update-element"
	EventCompleteElement = "complete-element"
	EventDeleteElement   = "delete-element"
	EventClearCanvas     = "clear-canvas"
	EventUndo            = "undo"
	EventRedo            = "redo"
	EventCursorMove      = "cursor-move"
	EventCursorStop      = "cursor-stop"
)

// Server to client event types.
const (
	EventRoomJoined        = "room-joined"
	EventParticipantJoined = "participant-joined"
	EventParticipantLeft   = "participant-left"
	EventElementCreated    = "element-created"
	EventElementUpdated    = "element-updated"
	EventElementCompleted  = "element-completed"
	EventElementDeleted    = "element-deleted"
	EventCanvasCleared     = "canvas-cleared"
	EventUndoApplied       = "undo-applied"
	EventRedoApplied       = "redo-applied"
	EventCursorMoved       = "cursor-moved"
	EventCursorStopped     = "cursor-stopped"
	EventRoomCreated       = "room-created"
	EventError             = "error"
)

// Envelope is an inbound client event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is an outbound server event.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Transport delivers messages to connected clients. Implementations keep
// their own room index, maintained through JoinRoom and LeaveRoom.
type Transport interface {
	JoinRoom(connID, roomID string)
	LeaveRoom(connID string)
	SendTo(ctx context.Context, connID string, msg Message) error
	Broadcast(ctx context.Context, roomID, exceptConnID string, msg Message) error
}

// Inbound payloads.

type JoinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type CreateElementPayload struct {
	RoomID  string         `json:"roomId"`
	Element map[string]any `json:"element"`
}

// UpdateElementPayload carries either a full Element replacement or a
// partial Patch. Final marks a full replacement as the terminal update.
type UpdateElementPayload struct {
	RoomID    string         `json:"roomId"`
	ElementID string         `json:"elementId"`
	Patch     map[string]any `json:"patch,omitempty"`
	Element   map[string]any `json:"element,omitempty"`
	Final     bool           `json:"final,omitempty"`
}

type CompleteElementPayload struct {
	RoomID    string         `json:"roomId"`
	ElementID string         `json:"elementId"`
	Element   map[string]any `json:"element"`
}

type DeleteElementPayload struct {
	RoomID    string `json:"roomId"`
	ElementID string `json:"elementId"`
}

// RoomPayload is used by events that only name a room.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type SnapshotPayload struct {
	RoomID   string `json:"roomId"`
	Elements []any  `json:"elements"`
}

type CursorMovePayload struct {
	RoomID   string `json:"roomId"`
	Position any    `json:"position"`
}

// Outbound payloads.

type RoomInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

type RoomJoinedPayload struct {
	Room          RoomInfo             `json:"room"`
	ParticipantID string               `json:"participantId"`
	Document      []domain.Element     `json:"document"`
	Participants  []domain.Participant `json:"participants"`
}

type ParticipantJoinedPayload struct {
	Participant domain.Participant `json:"participant"`
}

type ParticipantLeftPayload struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

type ElementPayload struct {
	Element domain.Element `json:"element"`
}

type ElementUpdatedPayload struct {
	ElementID string          `json:"elementId"`
	Patch     map[string]any  `json:"patch,omitempty"`
	Element   *domain.Element `json:"element,omitempty"`
}

type ElementDeletedPayload struct {
	ElementID string `json:"elementId"`
}

type CanvasClearedPayload struct{}

type SnapshotAppliedPayload struct {
	Elements []domain.Element `json:"elements"`
}

type CursorMovedPayload struct {
	ParticipantID string       `json:"participantId"`
	DisplayName   string       `json:"displayName"`
	Position      domain.Point `json:"position"`
}

type CursorStoppedPayload struct {
	ParticipantID string `json:"participantId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

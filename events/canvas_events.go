package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// RoomCreatedEvent is emitted when a new room is created.
type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantJoinedEvent is emitted after a connection joins a room.
type ParticipantJoinedEvent struct {
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Timestamp     time.Time `json:"timestamp"`
}

// ParticipantLeftEvent is emitted after a connection leaves a room.
type ParticipantLeftEvent struct {
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Timestamp     time.Time `json:"timestamp"`
}

// CanvasClearedEvent is emitted when a room's document is reset.
type CanvasClearedEvent struct {
	RoomID    string    `json:"room_id"`
	ClearedBy string    `json:"cleared_by"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the canvas domain.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"canvas",
		"RoomCreated",
		"v1",
	)

	ParticipantJoinedV1 = helper.EventDefinition[ParticipantJoinedEvent](
		"canvas",
		"ParticipantJoined",
		"v1",
	)

	ParticipantLeftV1 = helper.EventDefinition[ParticipantLeftEvent](
		"canvas",
		"ParticipantLeft",
		"v1",
	)

	CanvasClearedV1 = helper.EventDefinition[CanvasClearedEvent](
		"canvas",
		"CanvasCleared",
		"v1",
	)
)

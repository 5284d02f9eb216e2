package canvas

import "errors"

// Sentinel errors shared by the canvas module and the document stores.
var (
	// ErrRoomNotFound is returned when no room exists for the given id.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned when creating a room whose id is taken.
	ErrRoomExists = errors.New("room already exists")

	// ErrElementNotFound is returned when a targeted element is absent.
	ErrElementNotFound = errors.New("element not found")

	// ErrVersionConflict is returned when a write was based on a stale version.
	ErrVersionConflict = errors.New("room version conflict")
)

package canvas

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Name limits.
const (
	MaxDisplayNameLength = 50
	MaxRoomNameLength    = 100
	MaxOwnerLength       = 50
)

// Name validation errors.
var (
	ErrDisplayNameEmpty   = errors.New("display name cannot be empty")
	ErrDisplayNameTooLong = errors.New("display name exceeds maximum length")
	ErrDisplayNameInvalid = errors.New("display name contains invalid characters")
	ErrRoomNameEmpty      = errors.New("room name cannot be empty")
	ErrRoomNameTooLong    = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid    = errors.New("room name contains invalid characters")
	ErrOwnerTooLong       = errors.New("owner name exceeds maximum length")
)

// ValidateDisplayName checks a participant display name.
func ValidateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrDisplayNameEmpty
	}
	if !utf8.ValidString(name) {
		return ErrDisplayNameInvalid
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return ErrDisplayNameTooLong
	}
	return nil
}

// ValidateRoomName checks a room display name.
func ValidateRoomName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrRoomNameEmpty
	}
	if !utf8.ValidString(name) {
		return ErrRoomNameInvalid
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	return nil
}

// Service names for the room directory.
const (
	ServiceCreateRoom = "create-room"
	ServiceListRooms  = "list-rooms"
	ServiceGetRoom    = "get-room"
)

// RoomSummary describes a room without its document.
type RoomSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner"`
	CreatedAt    time.Time `json:"created_at"`
	ElementCount int       `json:"element_count"`
	Participants int       `json:"participants"`
}

// CreateRoomRequest is the request for the create-room service.
type CreateRoomRequest struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// CreateRoomResponse is the response for the create-room service.
type CreateRoomResponse struct {
	Room  *RoomSummary `json:"room,omitempty"`
	Error string       `json:"error,omitempty"`
}

// ListRoomsRequest is the request for the list-rooms service.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response for the list-rooms service.
type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
	Error string        `json:"error,omitempty"`
}

// GetRoomRequest is the request for the get-room service.
type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

// GetRoomResponse is the response for the get-room service.
type GetRoomResponse struct {
	Room     *RoomSummary `json:"room,omitempty"`
	NotFound bool         `json:"not_found,omitempty"`
	Error    string       `json:"error,omitempty"`
}

package api

import "time"

// CreateRoomRequest is the API request to create a room.
type CreateRoomRequest struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// RoomResponse is the API response for a room.
type RoomResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner"`
	CreatedAt    time.Time `json:"created_at"`
	Elements     int       `json:"elements"`
	Participants int       `json:"participants"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// ConnectedPayload is sent to a websocket client right after it connects.
type ConnectedPayload struct {
	ParticipantID string `json:"participantId"`
}

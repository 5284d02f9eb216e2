package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ErrInvalidRoom is returned by the adapter when the directory rejects a request.
var ErrInvalidRoom = errors.New("invalid room request")

// RoomDirectoryPort defines the room directory operations used by
// driving adapters.
type RoomDirectoryPort interface {
	CreateRoom(ctx context.Context, name, owner string) (*RoomSummary, error)
	ListRooms(ctx context.Context) ([]RoomSummary, error)
	GetRoom(ctx context.Context, roomID string) (*RoomSummary, error)
}

// RoomDirectoryAdapter implements RoomDirectoryPort over the service container.
type RoomDirectoryAdapter struct {
	container mono.ServiceContainer
}

// NewRoomDirectoryAdapter creates a RoomDirectoryAdapter.
func NewRoomDirectoryAdapter(container mono.ServiceContainer) RoomDirectoryPort {
	if container == nil {
		panic("canvas: ServiceContainer is nil")
	}
	return &RoomDirectoryAdapter{container: container}
}

// CreateRoom creates a new room.
func (a *RoomDirectoryAdapter) CreateRoom(ctx context.Context, name, owner string) (*RoomSummary, error) {
	req := CreateRoomRequest{Name: name, Owner: owner}
	var resp CreateRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoom, resp.Error)
	}
	return resp.Room, nil
}

// ListRooms returns all rooms.
func (a *RoomDirectoryAdapter) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// GetRoom retrieves a room by ID.
func (a *RoomDirectoryAdapter) GetRoom(ctx context.Context, roomID string) (*RoomSummary, error) {
	req := GetRoomRequest{RoomID: roomID}
	var resp GetRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if resp.NotFound {
		return nil, domain.ErrRoomNotFound
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoom, resp.Error)
	}
	return resp.Room, nil
}

package canvas

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/TaelanSakay/PlayGround/modules/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T) (*Module, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport()
	m, err := NewModule(storage.NewMemoryStore(), transport, &mockLogger{})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	return m, transport
}

func TestModule_StartCreatesLobbyOnce(t *testing.T) {
	m, _ := newTestModule(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx), "second start must tolerate an existing lobby")

	lobby, err := m.GetRoom(ctx, LobbyRoomID)
	require.NoError(t, err)
	assert.Equal(t, "Lobby", lobby.Name)
	assert.Equal(t, "system", lobby.Owner)
}

func TestModule_CreateRoom(t *testing.T) {
	m, _ := newTestModule(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		roomName  string
		owner     string
		wantOwner string
		wantErr   error
	}{
		{name: "valid room", roomName: "Design review", owner: "ada", wantOwner: "ada"},
		{name: "owner defaults", roomName: "  Sketches  ", wantOwner: "anonymous"},
		{name: "empty name", roomName: "   ", wantErr: ErrRoomNameEmpty},
		{name: "long name", roomName: strings.Repeat("x", MaxRoomNameLength+1), wantErr: ErrRoomNameTooLong},
		{name: "long owner", roomName: "ok", owner: strings.Repeat("o", MaxOwnerLength+1), wantErr: ErrOwnerTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := m.CreateRoom(ctx, tt.roomName, tt.owner)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, room.ID, roomIDLength)
			assert.Equal(t, strings.TrimSpace(tt.roomName), room.Name)
			assert.Equal(t, tt.wantOwner, room.Owner)
			assert.Zero(t, room.ElementCount)
			assert.False(t, room.CreatedAt.IsZero())
		})
	}
}

func TestModule_ListAndGetRooms(t *testing.T) {
	m, transport := newTestModule(t)
	ctx := context.Background()

	created, err := m.CreateRoom(ctx, "Whiteboard", "ada")
	require.NoError(t, err)

	rooms, err := m.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	m.Coordinator().Handle(ctx, "c1", envelope(t, EventJoin, map[string]any{"roomId": created.ID, "displayName": "Ada"}))
	require.Len(t, transport.messages("c1", EventRoomJoined), 1)

	got, err := m.GetRoom(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Participants)

	_, err = m.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestModule_ServiceHandlers(t *testing.T) {
	m, _ := newTestModule(t)
	ctx := context.Background()

	t.Run("create-room reports validation errors in the response", func(t *testing.T) {
		resp, err := m.handleCreateRoom(ctx, CreateRoomRequest{Name: ""}, nil)
		require.NoError(t, err)
		assert.Nil(t, resp.Room)
		assert.Equal(t, ErrRoomNameEmpty.Error(), resp.Error)
	})

	t.Run("get-room flags missing rooms", func(t *testing.T) {
		resp, err := m.handleGetRoom(ctx, GetRoomRequest{RoomID: "missing"}, nil)
		require.NoError(t, err)
		assert.True(t, resp.NotFound)
	})

	t.Run("get-room requires an id", func(t *testing.T) {
		resp, err := m.handleGetRoom(ctx, GetRoomRequest{}, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("list-rooms", func(t *testing.T) {
		resp, err := m.handleListRooms(ctx, ListRoomsRequest{}, nil)
		require.NoError(t, err)
		assert.Len(t, resp.Rooms, 1)
	})
}

func TestModule_Health(t *testing.T) {
	m, _ := newTestModule(t)

	status := m.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, 0, status.Details["participants"])
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{invalid("x", "must be numeric"), "invalid x: must be numeric"},
		{&NotFoundError{Resource: "element", ID: "e1"}, "element not found: e1"},
		{&PersistenceError{Op: "save", Err: errors.New("timeout")}, "could not save changes, please retry"},
	}
	for _, tt := range tests {
		if got := userMessage(tt.err); got != tt.want {
			t.Errorf("userMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

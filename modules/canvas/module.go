package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/TaelanSakay/PlayGround/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	gonanoid "github.com/jaevor/go-nanoid"
	"golang.org/x/sync/singleflight"
)

const (
	roomIDLength = 10

	// LobbyRoomID is the room created on start when it does not exist yet.
	LobbyRoomID = "lobby"
)

// Module owns the collaborative canvas: the room directory services and
// the Coordinator that serves websocket sessions.
type Module struct {
	docs        *Documents
	coordinator *Coordinator
	eventBus    mono.EventBus
	logger      types.Logger
	newRoomID   func() string
	lookups     singleflight.Group
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the canvas module on top of store, delivering client
// events through transport. The registry is owned by the module.
func NewModule(store DocumentStore, transport Transport, logger types.Logger) (*Module, error) {
	newRoomID, err := gonanoid.Standard(roomIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create room id generator: %w", err)
	}

	docs := NewDocuments(store, DefaultRetryPolicy())
	coordinator := NewCoordinator(docs, NewRegistry(), transport, NewValidator(time.Now), logger.WithModule("coordinator"))

	return &Module{
		docs:        docs,
		coordinator: coordinator,
		logger:      logger,
		newRoomID:   newRoomID,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "canvas"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
	m.coordinator.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.ParticipantJoinedV1.ToBase(),
		events.ParticipantLeftV1.ToBase(),
		events.CanvasClearedV1.ToBase(),
	}
}

// RegisterServices registers the room directory as request-reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.handleCreateRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.handleListRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.handleGetRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}

	m.logger.Info("Registered canvas services",
		"services", []string{ServiceCreateRoom, ServiceListRooms, ServiceGetRoom})
	return nil
}

// Start makes sure the default lobby room exists.
func (m *Module) Start(ctx context.Context) error {
	lobby := &domain.Room{
		ID:        LobbyRoomID,
		Name:      "Lobby",
		Owner:     "system",
		CreatedAt: time.Now().UTC(),
	}
	if err := m.docs.CreateRoom(ctx, lobby); err != nil && !errors.Is(err, domain.ErrRoomExists) {
		return fmt.Errorf("failed to create lobby room: %w", err)
	}
	m.logger.Info("Canvas module started", "lobby", LobbyRoomID)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Canvas module stopped", "participants", m.coordinator.Registry().Count())
	return nil
}

// Health reports live presence numbers.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"participants": m.coordinator.Registry().Count(),
		},
	}
}

// Coordinator returns the session coordinator for the websocket layer.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}

// CreateRoom creates an empty room and announces it.
func (m *Module) CreateRoom(ctx context.Context, name, owner string) (*RoomSummary, error) {
	name = strings.TrimSpace(name)
	if err := ValidateRoomName(name); err != nil {
		return nil, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = "anonymous"
	}
	if len(owner) > MaxOwnerLength {
		return nil, ErrOwnerTooLong
	}

	room := &domain.Room{
		ID:           m.newRoomID(),
		Name:         name,
		Owner:        owner,
		CreatedAt:    time.Now().UTC(),
		Elements:     []domain.Element{},
		Participants: []string{},
	}
	if err := m.docs.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	if m.eventBus != nil {
		if err := events.RoomCreatedV1.Publish(m.eventBus, events.RoomCreatedEvent{
			RoomID:    room.ID,
			RoomName:  room.Name,
			Owner:     room.Owner,
			Timestamp: room.CreatedAt,
		}, nil); err != nil {
			m.logger.Warn("Failed to publish RoomCreated event", "roomID", room.ID, "error", err)
		}
	}

	m.logger.Info("Room created", "roomID", room.ID, "name", room.Name)
	summary := m.summarize(room)
	return &summary, nil
}

// ListRooms returns a summary of every room.
func (m *Module) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := m.docs.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, m.summarize(room))
	}
	return summaries, nil
}

// GetRoom returns a summary of one room. Concurrent lookups of the same
// room share a single store read.
func (m *Module) GetRoom(ctx context.Context, roomID string) (*RoomSummary, error) {
	v, err, _ := m.lookups.Do(roomID, func() (any, error) {
		return m.docs.LoadRoom(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	summary := m.summarize(v.(*domain.Room))
	return &summary, nil
}

func (m *Module) summarize(room *domain.Room) RoomSummary {
	return RoomSummary{
		ID:           room.ID,
		Name:         room.Name,
		Owner:        room.Owner,
		CreatedAt:    room.CreatedAt,
		ElementCount: len(room.Elements),
		Participants: len(m.coordinator.Registry().ListByRoom(room.ID)),
	}
}

func (m *Module) handleCreateRoom(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	room, err := m.CreateRoom(ctx, req.Name, req.Owner)
	if err != nil {
		if isClientError(err) {
			return CreateRoomResponse{Error: err.Error()}, nil
		}
		return CreateRoomResponse{}, err
	}
	return CreateRoomResponse{Room: room}, nil
}

func (m *Module) handleListRooms(ctx context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms, err := m.ListRooms(ctx)
	if err != nil {
		return ListRoomsResponse{}, err
	}
	return ListRoomsResponse{Rooms: rooms}, nil
}

func (m *Module) handleGetRoom(ctx context.Context, req GetRoomRequest, _ *mono.Msg) (GetRoomResponse, error) {
	if req.RoomID == "" {
		return GetRoomResponse{Error: "room_id is required"}, nil
	}
	room, err := m.GetRoom(ctx, req.RoomID)
	if err != nil {
		var nerr *NotFoundError
		if errors.As(err, &nerr) {
			return GetRoomResponse{NotFound: true}, nil
		}
		return GetRoomResponse{}, err
	}
	return GetRoomResponse{Room: room}, nil
}

func isClientError(err error) bool {
	switch {
	case errors.Is(err, ErrRoomNameEmpty),
		errors.Is(err, ErrRoomNameTooLong),
		errors.Is(err, ErrRoomNameInvalid),
		errors.Is(err, ErrOwnerTooLong),
		errors.Is(err, domain.ErrRoomExists):
		return true
	}
	return false
}

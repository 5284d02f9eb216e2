package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/TaelanSakay/PlayGround/events"
	"github.com/TaelanSakay/PlayGround/modules/canvas"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// RoomCreatedPayload is sent to every client when a room is created.
type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
	Owner  string `json:"owner"`
}

// Module runs the websocket hub and relays directory events to clients.
type Module struct {
	hub       *Hub
	cancelHub context.CancelFunc
	logger    types.Logger

	joins  atomic.Int64
	leaves atomic.Int64
	clears atomic.Int64
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new broadcast module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		hub:    NewHub(logger.WithModule("hub")),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start runs the hub.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Broadcast module started")
	return nil
}

// Stop closes every client and waits for the hub to finish.
func (m *Module) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Broadcast module stopped", "clients", clientCount)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"joins":             m.joins.Load(),
			"leaves":            m.leaves.Load(),
			"clears":            m.clears.Load(),
		},
	}
}

// RegisterEventConsumers subscribes to canvas events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantJoinedV1, m.handleParticipantJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantLeftV1, m.handleParticipantLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.CanvasClearedV1, m.handleCanvasCleared, m,
	); err != nil {
		return fmt.Errorf("failed to register CanvasCleared consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"RoomCreated", "ParticipantJoined", "ParticipantLeft", "CanvasCleared"})
	return nil
}

func (m *Module) handleRoomCreated(ctx context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.logger.Debug("Announcing new room", "roomID", event.RoomID)

	return m.hub.BroadcastAll(ctx, canvas.Message{
		Type: canvas.EventRoomCreated,
		Payload: RoomCreatedPayload{
			RoomID: event.RoomID,
			Name:   event.RoomName,
			Owner:  event.Owner,
		},
	})
}

func (m *Module) handleParticipantJoined(_ context.Context, _ events.ParticipantJoinedEvent, _ *mono.Msg) error {
	m.joins.Add(1)
	return nil
}

func (m *Module) handleParticipantLeft(_ context.Context, _ events.ParticipantLeftEvent, _ *mono.Msg) error {
	m.leaves.Add(1)
	return nil
}

func (m *Module) handleCanvasCleared(_ context.Context, event events.CanvasClearedEvent, _ *mono.Msg) error {
	m.clears.Add(1)
	m.logger.Debug("Canvas cleared", "roomID", event.RoomID, "by", event.ClearedBy)
	return nil
}

// Hub returns the websocket hub.
func (m *Module) Hub() *Hub {
	return m.hub
}

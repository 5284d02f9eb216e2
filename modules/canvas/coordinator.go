package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/TaelanSakay/PlayGround/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Coordinator handles client events for every connection. Each event is
// processed independently: it validates, persists through Documents, and
// only then broadcasts. Failures are reported to the sender alone.
type Coordinator struct {
	docs      *Documents
	registry  *Registry
	transport Transport
	validator *Validator
	eventBus  mono.EventBus
	logger    types.Logger
	now       func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(docs *Documents, registry *Registry, transport Transport, validator *Validator, logger types.Logger) *Coordinator {
	return &Coordinator{
		docs:      docs,
		registry:  registry,
		transport: transport,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// SetEventBus enables publishing of domain events.
func (c *Coordinator) SetEventBus(bus mono.EventBus) {
	c.eventBus = bus
}

// Registry returns the presence registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Handle decodes and dispatches one inbound event. Any failure becomes an
// error event sent to connID only.
func (c *Coordinator) Handle(ctx context.Context, connID string, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while handling event",
				"connID", connID, "event", env.Type, "panic", r)
			c.sendError(ctx, connID, env.Type, errors.New("internal error"))
		}
	}()

	if err := c.dispatch(ctx, connID, env); err != nil {
		c.logger.Debug("Event rejected", "connID", connID, "event", env.Type, "error", err)
		c.sendError(ctx, connID, env.Type, err)
	}
}

func (c *Coordinator) dispatch(ctx context.Context, connID string, env Envelope) error {
	switch env.Type {
	case EventJoin:
		var p JoinPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return c.Join(ctx, connID, p)
	case EventCreateElement:
		var p CreateElementPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return c.CreateElement(ctx, connID, p)
	case EventUpdateElement:
		var p UpdateElementPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return c.UpdateElement(ctx, connID, p)
	case EventCompleteElement:
		var p CompleteElementPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return c.CompleteElement(ctx, connID, p)
	case EventDeleteElement:
		var p DeleteElementPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return c.DeleteElement(ctx, connID, p)
	case EventClearCanvas:
		var p RoomPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return c.ClearCanvas(ctx, connID, p)
	case EventUndo, EventRedo:
		var p SnapshotPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		if env.Type == EventUndo {
			return c.Undo(ctx, connID, p)
		}
		return c.Redo(ctx, connID, p)
	case EventCursorMove:
		var p CursorMovePayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return c.MoveCursor(ctx, connID, p)
	case EventCursorStop:
		var p RoomPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		return c.StopCursor(ctx, connID, p)
	default:
		return invalid("type", fmt.Sprintf("unknown event %q", env.Type))
	}
}

func decodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return invalid("payload", "is required")
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return invalid("payload", "is malformed for "+env.Type)
	}
	return nil
}

// Join registers connID in a room and sends it the current document.
func (c *Coordinator) Join(ctx context.Context, connID string, p JoinPayload) error {
	if p.RoomID == "" {
		return invalid("roomId", "is required")
	}
	name := strings.TrimSpace(p.DisplayName)
	if err := ValidateDisplayName(name); err != nil {
		return invalid("displayName", err.Error())
	}

	// Unknown rooms are rejected before any presence state changes.
	if _, err := c.docs.LoadRoom(ctx, p.RoomID); err != nil {
		return err
	}

	room, err := c.docs.AddParticipantID(ctx, p.RoomID, connID)
	if err != nil {
		return err
	}

	prev, joined := c.registry.Get(connID)
	if joined && prev.RoomID == room.ID {
		c.sendRoomJoined(ctx, connID, room)
		return nil
	}
	if joined {
		c.leave(ctx, prev)
	}

	participant := domain.Participant{
		ID:          connID,
		DisplayName: name,
		RoomID:      room.ID,
		CursorState: domain.CursorNone,
		JoinedAt:    c.now(),
	}
	c.registry.Put(connID, participant)
	c.transport.JoinRoom(connID, room.ID)

	c.sendRoomJoined(ctx, connID, room)
	c.broadcast(ctx, room.ID, connID, EventParticipantJoined, ParticipantJoinedPayload{
		Participant: participant,
	})

	c.publish(func(bus mono.EventBus) error {
		return events.ParticipantJoinedV1.Publish(bus, events.ParticipantJoinedEvent{
			RoomID:        room.ID,
			ParticipantID: connID,
			DisplayName:   name,
			Timestamp:     participant.JoinedAt,
		}, nil)
	})

	c.logger.Info("Participant joined room", "connID", connID, "roomID", room.ID)
	return nil
}

// sendRoomJoined replies to connID with the room snapshot.
func (c *Coordinator) sendRoomJoined(ctx context.Context, connID string, room *domain.Room) {
	document := room.Elements
	if document == nil {
		document = []domain.Element{}
	}
	c.send(ctx, connID, EventRoomJoined, RoomJoinedPayload{
		Room:          RoomInfo{ID: room.ID, Name: room.Name, Owner: room.Owner},
		ParticipantID: connID,
		Document:      document,
		Participants:  c.registry.ListByRoom(room.ID),
	})
}

// CreateElement appends a draft element and announces it to the room.
func (c *Coordinator) CreateElement(ctx context.Context, connID string, p CreateElementPayload) error {
	if _, err := c.member(connID, p.RoomID); err != nil {
		return err
	}

	res, err := c.validator.Validate(p.Element, connID, StageDraft)
	c.logWarnings(connID, EventCreateElement, res.Warnings)
	if err != nil {
		return err
	}

	el := res.Element
	if _, err := c.docs.AppendElement(ctx, p.RoomID, el); err != nil {
		return err
	}

	c.broadcast(ctx, p.RoomID, connID, EventElementCreated, ElementPayload{Element: el})
	return nil
}

// UpdateElement applies either a full replacement or a partial patch.
func (c *Coordinator) UpdateElement(ctx context.Context, connID string, p UpdateElementPayload) error {
	if _, err := c.member(connID, p.RoomID); err != nil {
		return err
	}
	if p.ElementID == "" {
		return invalid("elementId", "is required")
	}

	switch {
	case p.Element != nil:
		return c.replaceElement(ctx, connID, p)
	case p.Patch != nil:
		return c.patchElement(ctx, connID, p)
	default:
		return invalid("update", "needs a patch or an element")
	}
}

func (c *Coordinator) replaceElement(ctx context.Context, connID string, p UpdateElementPayload) error {
	stage := StageDraft
	if p.Final {
		stage = StageComplete
	}
	res, err := c.validator.Validate(p.Element, connID, stage)
	c.logWarnings(connID, EventUpdateElement, res.Warnings)
	if err != nil {
		return err
	}
	if res.Element.ID != p.ElementID {
		return invalid("elementId", "does not match the element id")
	}

	var applied domain.Element
	_, err = c.docs.UpdateElement(ctx, p.RoomID, p.ElementID, func(cur domain.Element) (domain.Element, error) {
		next := res.Element.Clone()
		if next.Kind != cur.Kind {
			return cur, invalid("kind", "cannot change after creation")
		}
		// Completed elements are never reopened as drafts.
		if cur.Complete && !next.Complete {
			if _, err := c.validator.Validate(p.Element, connID, StageComplete); err != nil {
				return cur, err
			}
			next.Complete = true
		}
		next.CreatedAt = cur.CreatedAt
		next.Author = cur.Author
		applied = next
		return next, nil
	})
	if err != nil {
		return err
	}

	c.broadcast(ctx, p.RoomID, connID, EventElementUpdated, ElementUpdatedPayload{
		ElementID: p.ElementID,
		Element:   &applied,
	})
	return nil
}

func (c *Coordinator) patchElement(ctx context.Context, connID string, p UpdateElementPayload) error {
	patch, err := c.validator.ValidatePatch(p.Patch)
	c.logWarnings(connID, EventUpdateElement, patch.Warnings)
	if err != nil {
		return err
	}

	var applied map[string]any
	_, err = c.docs.UpdateElement(ctx, p.RoomID, p.ElementID, func(cur domain.Element) (domain.Element, error) {
		merged, err := elementFields(cur)
		if err != nil {
			return cur, err
		}
		for k, v := range patch.Fields {
			merged[k] = v
		}
		stage := StageDraft
		if cur.Complete {
			stage = StageComplete
		}
		res, err := c.validator.Validate(merged, cur.Author, stage)
		if err != nil {
			return cur, err
		}
		next := res.Element
		next.CreatedAt = cur.CreatedAt
		next.Complete = cur.Complete
		if applied, err = appliedPatch(cur, next); err != nil {
			return cur, err
		}
		return next, nil
	})
	if err != nil {
		return err
	}

	c.broadcast(ctx, p.RoomID, connID, EventElementUpdated, ElementUpdatedPayload{
		ElementID: p.ElementID,
		Patch:     applied,
	})
	return nil
}

// CompleteElement finalizes an element. A payload that fails the
// completion rule leaves the document untouched.
func (c *Coordinator) CompleteElement(ctx context.Context, connID string, p CompleteElementPayload) error {
	if _, err := c.member(connID, p.RoomID); err != nil {
		return err
	}

	res, err := c.validator.Validate(p.Element, connID, StageComplete)
	c.logWarnings(connID, EventCompleteElement, res.Warnings)
	if err != nil {
		return err
	}
	elementID := p.ElementID
	if elementID == "" {
		elementID = res.Element.ID
	}
	if res.Element.ID != elementID {
		return invalid("elementId", "does not match the element id")
	}

	var completed domain.Element
	_, err = c.docs.UpdateElement(ctx, p.RoomID, elementID, func(cur domain.Element) (domain.Element, error) {
		next := res.Element.Clone()
		if next.Kind != cur.Kind {
			return cur, invalid("kind", "cannot change after creation")
		}
		next.CreatedAt = cur.CreatedAt
		next.Author = cur.Author
		next.Complete = true
		completed = next
		return next, nil
	})
	if err != nil {
		return err
	}

	c.broadcast(ctx, p.RoomID, connID, EventElementCompleted, ElementPayload{Element: completed})
	return nil
}

// DeleteElement removes an element. Unknown ids are not an error.
func (c *Coordinator) DeleteElement(ctx context.Context, connID string, p DeleteElementPayload) error {
	if _, err := c.member(connID, p.RoomID); err != nil {
		return err
	}
	if p.ElementID == "" {
		return invalid("elementId", "is required")
	}

	if _, err := c.docs.RemoveElement(ctx, p.RoomID, p.ElementID); err != nil {
		return err
	}

	c.broadcast(ctx, p.RoomID, connID, EventElementDeleted, ElementDeletedPayload{ElementID: p.ElementID})
	return nil
}

// ClearCanvas empties the document and tells everyone, sender included.
func (c *Coordinator) ClearCanvas(ctx context.Context, connID string, p RoomPayload) error {
	if _, err := c.member(connID, p.RoomID); err != nil {
		return err
	}

	if _, err := c.docs.ReplaceAllElements(ctx, p.RoomID, nil); err != nil {
		return err
	}

	c.broadcast(ctx, p.RoomID, "", EventCanvasCleared, CanvasClearedPayload{})

	c.publish(func(bus mono.EventBus) error {
		return events.CanvasClearedV1.Publish(bus, events.CanvasClearedEvent{
			RoomID:    p.RoomID,
			ClearedBy: connID,
			Timestamp: c.now(),
		}, nil)
	})
	return nil
}

// Undo replaces the document with the client's undo result.
func (c *Coordinator) Undo(ctx context.Context, connID string, p SnapshotPayload) error {
	return c.applySnapshot(ctx, connID, p, EventUndo, EventUndoApplied)
}

// Redo replaces the document with the client's redo result.
func (c *Coordinator) Redo(ctx context.Context, connID string, p SnapshotPayload) error {
	return c.applySnapshot(ctx, connID, p, EventRedo, EventRedoApplied)
}

func (c *Coordinator) applySnapshot(ctx context.Context, connID string, p SnapshotPayload, event, applied string) error {
	if _, err := c.member(connID, p.RoomID); err != nil {
		return err
	}
	if p.Elements == nil {
		return invalid("elements", "is required")
	}

	res, err := c.validator.ValidateSnapshot(p.Elements, connID)
	c.logWarnings(connID, event, res.Warnings)
	if err != nil {
		return err
	}

	if _, err := c.docs.ReplaceAllElements(ctx, p.RoomID, res.Elements); err != nil {
		return err
	}

	if res.Dropped > 0 {
		c.logger.Info("Dropped invalid elements from snapshot",
			"connID", connID, "event", event, "dropped", res.Dropped, "kept", len(res.Elements))
	}
	c.broadcast(ctx, p.RoomID, connID, applied, SnapshotAppliedPayload{Elements: res.Elements})
	return nil
}

// MoveCursor records a cursor position and relays it.
func (c *Coordinator) MoveCursor(ctx context.Context, connID string, p CursorMovePayload) error {
	if _, err := c.member(connID, p.RoomID); err != nil {
		return err
	}
	pos, ok := toPoint(p.Position)
	if !ok {
		return invalid("position", "must be an {x, y} point")
	}

	participant, ok := c.registry.MoveCursor(connID, pos)
	if !ok {
		return &NotFoundError{Resource: "participant", ID: connID}
	}

	c.broadcast(ctx, p.RoomID, connID, EventCursorMoved, CursorMovedPayload{
		ParticipantID: connID,
		DisplayName:   participant.DisplayName,
		Position:      pos,
	})
	return nil
}

// StopCursor marks the cursor of connID as stopped and relays it.
func (c *Coordinator) StopCursor(ctx context.Context, connID string, p RoomPayload) error {
	if _, err := c.member(connID, p.RoomID); err != nil {
		return err
	}
	if _, ok := c.registry.StopCursor(connID); !ok {
		return &NotFoundError{Resource: "participant", ID: connID}
	}

	c.broadcast(ctx, p.RoomID, connID, EventCursorStopped, CursorStoppedPayload{ParticipantID: connID})
	return nil
}

// Disconnect cleans up after a closed connection.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	participant, ok := c.registry.Get(connID)
	if !ok {
		return
	}
	c.leave(ctx, participant)
}

// leave removes a participant from its room. Persistence failures are
// logged; the departure is announced regardless.
func (c *Coordinator) leave(ctx context.Context, participant domain.Participant) {
	if _, err := c.docs.RemoveParticipantID(ctx, participant.RoomID, participant.ID); err != nil {
		c.logger.Warn("Failed to remove participant from room",
			"connID", participant.ID, "roomID", participant.RoomID, "error", err)
	}

	c.broadcast(ctx, participant.RoomID, participant.ID, EventParticipantLeft, ParticipantLeftPayload{
		ParticipantID: participant.ID,
		DisplayName:   participant.DisplayName,
	})
	c.registry.Remove(participant.ID)
	c.transport.LeaveRoom(participant.ID)

	c.publish(func(bus mono.EventBus) error {
		return events.ParticipantLeftV1.Publish(bus, events.ParticipantLeftEvent{
			RoomID:        participant.RoomID,
			ParticipantID: participant.ID,
			DisplayName:   participant.DisplayName,
			Timestamp:     c.now(),
		}, nil)
	})

	c.logger.Info("Participant left room", "connID", participant.ID, "roomID", participant.RoomID)
}

// member checks that connID has joined roomID.
func (c *Coordinator) member(connID, roomID string) (domain.Participant, error) {
	if roomID == "" {
		return domain.Participant{}, invalid("roomId", "is required")
	}
	participant, ok := c.registry.Get(connID)
	if !ok || participant.RoomID != roomID {
		return domain.Participant{}, invalid("roomId", "has not been joined by this connection")
	}
	return participant, nil
}

func (c *Coordinator) send(ctx context.Context, connID, eventType string, payload any) {
	if err := c.transport.SendTo(ctx, connID, Message{Type: eventType, Payload: payload}); err != nil {
		c.logger.Warn("Failed to send event", "connID", connID, "event", eventType, "error", err)
	}
}

func (c *Coordinator) broadcast(ctx context.Context, roomID, exceptConnID, eventType string, payload any) {
	if err := c.transport.Broadcast(ctx, roomID, exceptConnID, Message{Type: eventType, Payload: payload}); err != nil {
		c.logger.Warn("Failed to broadcast event", "roomID", roomID, "event", eventType, "error", err)
	}
}

func (c *Coordinator) sendError(ctx context.Context, connID, eventType string, err error) {
	c.send(ctx, connID, EventError, ErrorPayload{Message: userMessage(err), Event: eventType})
}

func (c *Coordinator) publish(fn func(bus mono.EventBus) error) {
	if c.eventBus == nil {
		return
	}
	if err := fn(c.eventBus); err != nil {
		c.logger.Warn("Failed to publish event", "error", err)
	}
}

func (c *Coordinator) logWarnings(connID, event string, warnings []string) {
	for _, w := range warnings {
		c.logger.Warn("Element sanitized", "connID", connID, "event", event, "warning", w)
	}
}

// elementFields returns el in its wire form as a generic map.
func elementFields(el domain.Element) (map[string]any, error) {
	data, err := json.Marshal(el)
	if err != nil {
		return nil, fmt.Errorf("failed to encode element: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode element: %w", err)
	}
	return fields, nil
}

// immutableFields never appear in an element-updated patch.
var immutableFields = map[string]bool{
	"id":        true,
	"kind":      true,
	"createdAt": true,
	"author":    true,
}

// appliedPatch returns the wire fields that turn cur into next, as stored.
// A field next no longer carries is sent as null.
func appliedPatch(cur, next domain.Element) (map[string]any, error) {
	before, err := elementFields(cur)
	if err != nil {
		return nil, err
	}
	after, err := elementFields(next)
	if err != nil {
		return nil, err
	}

	patch := make(map[string]any)
	for k, v := range after {
		if immutableFields[k] {
			continue
		}
		if old, ok := before[k]; !ok || !reflect.DeepEqual(old, v) {
			patch[k] = v
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok && !immutableFields[k] {
			patch[k] = nil
		}
	}
	return patch, nil
}

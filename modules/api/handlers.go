package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/TaelanSakay/PlayGround/modules/broadcast"
	"github.com/TaelanSakay/PlayGround/modules/canvas"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	api := app.Group("/api/v1")
	api.Get("/rooms", m.listRooms)
	api.Post("/rooms", m.createRoom)
	api.Get("/rooms/:id", m.getRoom)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{"module": "api"}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return c.JSON(HealthResponse{Status: "healthy", Details: details})
}

// listRooms handles GET /api/v1/rooms.
func (m *Module) listRooms(c *fiber.Ctx) error {
	rooms, err := m.rooms.ListRooms(c.UserContext())
	if err != nil {
		m.logger.Error("Failed to list rooms", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}

	response := RoomListResponse{Rooms: make([]RoomResponse, 0, len(rooms))}
	for _, room := range rooms {
		response.Rooms = append(response.Rooms, toRoomResponse(room))
	}
	return c.JSON(response)
}

// createRoom handles POST /api/v1/rooms.
func (m *Module) createRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Room name is required",
		})
	}

	room, err := m.rooms.CreateRoom(c.UserContext(), req.Name, req.Owner)
	if err != nil {
		if errors.Is(err, canvas.ErrInvalidRoom) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: strings.TrimPrefix(err.Error(), canvas.ErrInvalidRoom.Error()+": "),
			})
		}
		m.logger.Error("Failed to create room", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create room",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(toRoomResponse(*room))
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *Module) getRoom(c *fiber.Ctx) error {
	room, err := m.rooms.GetRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "Room not found",
			})
		case errors.Is(err, canvas.ErrInvalidRoom):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_request",
				Message: "Invalid room id",
			})
		}
		m.logger.Error("Failed to get room", "roomID", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "get_failed",
			Message: "Failed to get room",
		})
	}
	return c.JSON(toRoomResponse(*room))
}

func toRoomResponse(room canvas.RoomSummary) RoomResponse {
	return RoomResponse{
		ID:           room.ID,
		Name:         room.Name,
		Owner:        room.Owner,
		CreatedAt:    room.CreatedAt,
		Elements:     room.ElementCount,
		Participants: room.Participants,
	}
}

// handleWebSocket handles WebSocket connections at /ws.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	name := c.Query("name", "anonymous")

	m.hub.Register(&broadcast.Client{ID: connID, Name: name, Conn: c})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		m.session.Disconnect(context.Background(), connID)
		m.hub.Unregister(connID)
		m.logger.Info("WebSocket client disconnected", "connID", connID)
	}()

	m.logger.Info("WebSocket client connected", "connID", connID, "name", name)

	if err := m.hub.SendTo(ctx, connID, canvas.Message{
		Type:    "connected",
		Payload: ConnectedPayload{ParticipantID: connID},
	}); err != nil {
		m.logger.Warn("Failed to send welcome", "connID", connID, "error", err)
		return
	}

	c.SetReadLimit(m.cfg.MaxMessageSize)
	limiter := newEventLimiter(m.cfg.EventsPerSecond, m.cfg.EventBurst)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug("Client closed connection", "connID", connID)
			} else {
				m.logger.Warn("Read error", "connID", connID, "error", err)
			}
			return
		}

		var env canvas.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			m.sendError(ctx, connID, "", "invalid message format")
			continue
		}

		switch limiter.admit(env.Type) {
		case Drop:
			continue
		case Reject:
			m.sendError(ctx, connID, env.Type, "rate limit exceeded, slow down")
			continue
		}

		m.session.Handle(ctx, connID, env)
	}
}

func (m *Module) sendError(ctx context.Context, connID, event, message string) {
	if err := m.hub.SendTo(ctx, connID, canvas.Message{
		Type:    canvas.EventError,
		Payload: canvas.ErrorPayload{Message: message, Event: event},
	}); err != nil {
		m.logger.Warn("Failed to send error", "connID", connID, "error", err)
	}
}

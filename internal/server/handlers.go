package server

import (
	"context"
	"encoding/json"
	"errors"

	"casinoclient/internal/api"
	"casinoclient/internal/game"
	"casinoclient/internal/models"
	"casinoclient/internal/session"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

var errInvalidBody = fiber.NewError(fiber.StatusBadRequest, "Invalid request body")

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"session": s.session.Snapshot().State,
		"gateway": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.ClientCount(),
		},
		"double": fiber.Map{
			"phase":     s.games.Double.Phase(),
			"countdown": s.games.Double.Countdown(),
		},
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	return c.JSON(health)
}

func (s *FiberServer) getSessionHandler(c *fiber.Ctx) error {
	return c.JSON(s.session.Snapshot())
}

func (s *FiberServer) loginHandler(c *fiber.Ctx) error {
	var creds models.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return errInvalidBody
	}
	if creds.Email == "" || creds.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Email and password are required")
	}

	if err := s.session.Login(c.UserContext(), creds); err != nil {
		return err
	}
	return c.JSON(s.session.Snapshot())
}

func (s *FiberServer) logoutHandler(c *fiber.Ctx) error {
	if err := s.session.Logout(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(s.session.Snapshot())
}

func (s *FiberServer) claimDailyHandler(c *fiber.Ctx) error {
	if err := s.session.ClaimDaily(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(s.session.Snapshot())
}

// requireSession rejects actions while no user is logged in; the wallet would
// read a zero balance otherwise.
func (s *FiberServer) requireSession(c *fiber.Ctx) error {
	if s.session.Snapshot().State != session.StateLoggedIn {
		return session.ErrNotLoggedIn
	}
	return c.Next()
}

// gameWebSocketHandler streams session changes, controller state and
// notifications to a local UI. The first frames are a full snapshot.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	client := newClient(conn)
	defer client.close()
	logger := log.WithFields(log.Fields{"component": "gateway", "client_id": client.id})

	if err := client.send(game.Message{Type: "session", Data: s.session.Snapshot()}); err != nil {
		return
	}
	for gameType, snapshot := range s.registry.Snapshots() {
		if err := client.send(game.Message{Type: string(gameType) + "_state", Data: snapshot}); err != nil {
			return
		}
	}

	if !s.hub.Register(client) {
		return
	}
	defer s.hub.Unregister(client)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Debug("Read ended")
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg game.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			client.send(game.Message{Type: "pong"})
		}
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.WithFields(log.Fields{"component": "gateway", "path": c.Path()}).WithError(err).Error("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	var fiberErr *fiber.Error
	var apiErr *api.Error

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, session.ErrNotLoggedIn), errors.Is(err, session.ErrAuth):
		return fiber.StatusUnauthorized
	case errors.Is(err, game.ErrInvalidBet):
		return fiber.StatusBadRequest
	case errors.Is(err, game.ErrInsufficientBalance):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, game.ErrUnknownBall):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrControllerClosed):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, game.ErrActionInFlight),
		errors.Is(err, game.ErrBettingClosed),
		errors.Is(err, game.ErrNoActiveGame),
		errors.Is(err, game.ErrGameInProgress),
		errors.Is(err, game.ErrNothingToCashout):
		return fiber.StatusConflict
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

package server

import (
	"context"
	"errors"
	"time"

	"casinoclient/internal/cache"
	"casinoclient/internal/database"
	"casinoclient/internal/game"
	"casinoclient/internal/models"
	"casinoclient/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"
)

// SessionService is what the gateway needs from the session store.
type SessionService interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, creds models.Credentials) error
	Logout(ctx context.Context) error
	ClaimDaily(ctx context.Context) error
}

type Games struct {
	Double  *game.DoubleController
	Mines   *game.MinesController
	Plinko  *game.PlinkoController
	Tower   *game.TowerController
	Limbo   *game.LimboController
	Scratch *game.ScratchController
}

type Options struct {
	Session  SessionService
	Hub      *Hub
	Registry *game.Registry
	Games    Games
	// Cache and DB are optional.
	Cache cache.Service
	DB    database.Service
}

// FiberServer is the local gateway a UI talks to: read endpoints, action
// triggers and the /ws state stream.
type FiberServer struct {
	*fiber.App

	session  SessionService
	hub      *Hub
	registry *game.Registry
	games    Games
	cache    cache.Service
	db       database.Service
}

func New(opts Options) *FiberServer {
	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "casinoclient",
			AppName:               "casinoclient",
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
			IdleTimeout:           120 * time.Second,
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler,
		}),

		session:  opts.Session,
		hub:      opts.Hub,
		registry: opts.Registry,
		games:    opts.Games,
		cache:    opts.Cache,
		db:       opts.DB,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
	}))

	server.RegisterFiberRoutes()
	server.RegisterGameRoutes()
	return server
}

// Shutdown stops accepting requests, then tears down every controller and the
// optional stores.
func (s *FiberServer) Shutdown(ctx context.Context) error {
	logger := log.WithField("component", "gateway")
	logger.Info("Shutting down")

	var errs []error
	if err := s.App.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.registry != nil {
		if err := s.registry.CloseAll(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.WithError(err).Warn("Shutdown finished with errors")
	}
	return err
}

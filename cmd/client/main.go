package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casinoclient/internal/api"
	"casinoclient/internal/cable"
	"casinoclient/internal/cache"
	"casinoclient/internal/config"
	"casinoclient/internal/database"
	"casinoclient/internal/game"
	"casinoclient/internal/models"
	"casinoclient/internal/server"
	"casinoclient/internal/session"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()
	logger := log.WithField("component", "client")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisService := cache.New()
	var tokens session.TokenStore = session.NewMemoryTokenStore()
	if redisService != nil {
		tokens = cache.NewTokenStore(redisService.GetClient(), cfg.TokenProfile)
	}

	// The API client reads the token from the store it backs.
	var store *session.Store
	client := api.NewClient(cfg.APIBaseURL, api.TokenFunc(func() string {
		return store.Token()
	}), api.WithTimeout(cfg.HTTPTimeout))
	store = session.NewStore(client, tokens)

	if err := store.Hydrate(ctx); err != nil {
		logger.WithError(err).Warn("Session hydration failed")
	}
	if store.State() != session.StateLoggedIn && cfg.AutoLogin() {
		creds := models.Credentials{Email: cfg.LoginEmail, Password: cfg.LoginPassword}
		if err := store.Login(ctx, creds); err != nil {
			logger.WithError(err).Error("Auto-login failed")
		}
	}
	logger.WithField("state", store.State()).Info("Session ready")

	hub := server.NewHub()
	notifier := game.NewNotifier(hub)
	store.Subscribe(func(snap session.Snapshot) {
		hub.Broadcast(game.Message{Type: "session", Data: snap})
	})

	var archive database.Service
	var doubleOpts []game.DoubleOption
	if database.Enabled() {
		archive = database.New()
		if err := database.RunMigrations(archive.DB()); err != nil {
			logger.WithError(err).Error("Archive migrations failed, archiving disabled")
			archive.Close()
			archive = nil
		} else {
			doubleOpts = append(doubleOpts, game.WithArchive(archive))
		}
	}

	sub, err := cable.NewClient(cfg.CableURL, cfg.CableChannel, store).Subscribe(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Push channel subscription failed")
	}
	store.Subscribe(func(session.Snapshot) {
		sub.RefreshToken()
	})

	games := server.Games{
		Double: game.NewDoubleController(client, store, sub, hub, notifier, game.DoubleConfig{
			BettingPeriod: cfg.BettingPeriod,
			HistorySize:   cfg.HistorySize,
			TickInterval:  cfg.TickInterval,
		}, doubleOpts...),
		Mines:   game.NewMinesController(client, store, notifier, hub),
		Plinko:  game.NewPlinkoController(client, store, notifier, hub),
		Tower:   game.NewTowerController(client, store, notifier, hub),
		Limbo:   game.NewLimboController(client, store, notifier, hub),
		Scratch: game.NewScratchController(client, store, notifier, hub),
	}

	registry := game.NewRegistry()
	registry.Register(games.Double)
	registry.Register(games.Mines)
	registry.Register(games.Plinko)
	registry.Register(games.Tower)
	registry.Register(games.Limbo)
	registry.Register(games.Scratch)

	games.Double.Start()

	srv := server.New(server.Options{
		Session:  store,
		Hub:      hub,
		Registry: registry,
		Games:    games,
		Cache:    redisService,
		DB:       archive,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", cfg.GatewayAddr).Info("Gateway listening")
		return srv.Listen(cfg.GatewayAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Client stopped with error")
		os.Exit(1)
	}
	logger.Info("Client stopped")
}

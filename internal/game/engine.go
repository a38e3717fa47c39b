package game

import (
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

type GameType string

const (
	GameTypeDouble  GameType = "double"
	GameTypeMines   GameType = "mines"
	GameTypePlinko  GameType = "plinko"
	GameTypeTower   GameType = "tower"
	GameTypeLimbo   GameType = "limbo"
	GameTypeScratch GameType = "scratch"
)

// Controller is the lifecycle surface shared by every game controller.
type Controller interface {
	Type() GameType
	Snapshot() interface{}
	Close() error
}

type Registry struct {
	mu          sync.RWMutex
	controllers map[GameType]Controller
	order       []GameType
}

func NewRegistry() *Registry {
	return &Registry{
		controllers: make(map[GameType]Controller),
	}
}

func (r *Registry) Register(c Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.controllers[c.Type()]; !exists {
		r.order = append(r.order, c.Type())
	}
	r.controllers[c.Type()] = c
}

func (r *Registry) Get(gameType GameType) (Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, exists := r.controllers[gameType]
	return c, exists
}

func (r *Registry) Snapshots() map[GameType]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[GameType]interface{}, len(r.controllers))
	for gameType, c := range r.controllers {
		out[gameType] = c.Snapshot()
	}
	return out
}

// CloseAll closes controllers in registration order and joins their errors.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	order := append([]GameType(nil), r.order...)
	r.mu.RUnlock()

	var errs []error
	for _, gameType := range order {
		c, _ := r.Get(gameType)
		if err := c.Close(); err != nil {
			errs = append(errs, err)
			continue
		}
		log.WithField("component", string(gameType)).Info("Controller closed")
	}
	return errors.Join(errs...)
}

// base carries what the request/response controllers share.
type base struct {
	gameType GameType
	wallet   Wallet
	notifier Notifier
	hub      Broadcaster
	action   *Action
	closed   atomic.Bool
}

func (b *base) init(gameType GameType, wallet Wallet, notifier Notifier, hub Broadcaster) {
	b.gameType = gameType
	b.wallet = wallet
	b.notifier = notifierOrNop(notifier)
	b.hub = hub
	b.action = NewAction(gameType, wallet, b.notifier)
}

func (b *base) Type() GameType {
	return b.gameType
}

func (b *base) InFlight() bool {
	return b.action.InFlight()
}

func (b *base) alive() bool {
	return !b.closed.Load()
}

func (b *base) publish(state interface{}) {
	if b.hub == nil || !b.alive() {
		return
	}
	b.hub.Broadcast(Message{Type: string(b.gameType) + "_state", Data: state})
}

func (b *base) fail(err error) error {
	b.notifier.Notify(errorNotification(b.gameType, err))
	return err
}

func (b *base) logger() *log.Entry {
	return log.WithField("component", string(b.gameType))
}

func (b *base) Close() error {
	b.closed.Store(true)
	return nil
}

package game

import (
	"context"
	"sync"

	"casinoclient/internal/models"

	log "github.com/sirupsen/logrus"
)

type LimboBackend interface {
	PlayLimbo(ctx context.Context, amount int64, target float64) (models.LimboPlay, error)
	LimboHistory(ctx context.Context, page int) ([]models.LimboPlay, models.Page, error)
}

const LimboMinTarget = 1.01

type LimboState struct {
	Last     *models.LimboPlay  `json:"last,omitempty"`
	History  []models.LimboPlay `json:"history"`
	Page     models.Page        `json:"page"`
	InFlight bool               `json:"in_flight"`
}

// LimboController plays single-shot rounds. The win is whatever the server says.
type LimboController struct {
	base
	backend LimboBackend

	mu      sync.RWMutex
	last    *models.LimboPlay
	history []models.LimboPlay
	page    models.Page
}

func NewLimboController(backend LimboBackend, wallet Wallet, notifier Notifier, hub Broadcaster) *LimboController {
	c := &LimboController{backend: backend}
	c.init(GameTypeLimbo, wallet, notifier, hub)
	return c
}

func (c *LimboController) Play(ctx context.Context, amount int64, target float64) (models.LimboPlay, error) {
	if amount <= 0 || target < LimboMinTarget {
		return models.LimboPlay{}, c.fail(ErrInvalidBet)
	}

	play, err := Place(ctx, c.action, amount, func(ctx context.Context) (models.LimboPlay, error) {
		return c.backend.PlayLimbo(ctx, amount, target)
	}, func(p models.LimboPlay) int64 {
		return p.Winnings
	})
	if err != nil || !c.alive() {
		return play, err
	}

	c.mu.Lock()
	p := play
	c.last = &p
	c.mu.Unlock()

	c.logger().WithFields(log.Fields{
		"target": target,
		"result": play.ResultMultiplier,
		"won":    play.Won,
	}).Debug("Limbo played")
	c.publish(c.State())
	return play, nil
}

func (c *LimboController) History(ctx context.Context, page int) ([]models.LimboPlay, models.Page, error) {
	plays, p, err := c.backend.LimboHistory(ctx, page)
	if err != nil {
		return nil, models.Page{}, c.fail(err)
	}
	if c.alive() {
		c.mu.Lock()
		c.history = plays
		c.page = p
		c.mu.Unlock()
	}
	return plays, p, nil
}

func (c *LimboController) State() LimboState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := LimboState{
		History:  append([]models.LimboPlay{}, c.history...),
		Page:     c.page,
		InFlight: c.InFlight(),
	}
	if c.last != nil {
		p := *c.last
		state.Last = &p
	}
	return state
}

func (c *LimboController) Snapshot() interface{} {
	return c.State()
}

package game

import (
	"context"
	"sync"

	"casinoclient/internal/models"

	log "github.com/sirupsen/logrus"
)

type PlinkoBackend interface {
	PlayPlinko(ctx context.Context, amount int64, risk models.PlinkoRisk, rows int) (models.PlinkoBall, error)
	PlinkoHistory(ctx context.Context, page int) ([]models.PlinkoBall, models.Page, error)
}

const (
	PlinkoMinRows = 8
	PlinkoMaxRows = 16
)

type PlinkoState struct {
	Balls    []models.PlinkoBall `json:"balls"`
	Last     *models.PlinkoBall  `json:"last,omitempty"`
	History  []models.PlinkoBall `json:"history"`
	Page     models.Page         `json:"page"`
	InFlight bool                `json:"in_flight"`
}

// PlinkoController defers each ball's winnings until that ball's animation is
// reported complete. Balls complete independently of play order.
type PlinkoController struct {
	base
	backend PlinkoBackend

	mu      sync.RWMutex
	closed  bool
	balls   map[string]models.PlinkoBall
	order   []string
	last    *models.PlinkoBall
	history []models.PlinkoBall
	page    models.Page
}

func NewPlinkoController(backend PlinkoBackend, wallet Wallet, notifier Notifier, hub Broadcaster) *PlinkoController {
	c := &PlinkoController{
		backend: backend,
		balls:   make(map[string]models.PlinkoBall),
	}
	c.init(GameTypePlinko, wallet, notifier, hub)
	return c
}

// Play drops one ball. The wager is debited immediately; winnings wait for CompleteBall.
func (c *PlinkoController) Play(ctx context.Context, amount int64, risk models.PlinkoRisk, rows int) (models.PlinkoBall, error) {
	if amount <= 0 || rows < PlinkoMinRows || rows > PlinkoMaxRows {
		return models.PlinkoBall{}, c.fail(ErrInvalidBet)
	}
	switch risk {
	case models.PlinkoRiskLow, models.PlinkoRiskMedium, models.PlinkoRiskHigh:
	default:
		return models.PlinkoBall{}, c.fail(ErrInvalidBet)
	}

	ball, err := Place(ctx, c.action, amount, func(ctx context.Context) (models.PlinkoBall, error) {
		return c.backend.PlayPlinko(ctx, amount, risk, rows)
	}, nil)
	if err != nil {
		return ball, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		// Nothing will animate after teardown, so settle right away.
		c.settle(ball)
		return ball, nil
	}
	c.balls[ball.ID] = ball
	c.order = append(c.order, ball.ID)
	b := ball
	c.last = &b
	c.mu.Unlock()

	c.logger().WithFields(log.Fields{"ball_id": ball.ID, "multiplier": ball.Multiplier}).Debug("Ball dropped")
	c.publish(c.State())
	return ball, nil
}

// CompleteBall applies the winnings of the ball whose animation finished.
func (c *PlinkoController) CompleteBall(id string) (models.PlinkoBall, error) {
	c.mu.Lock()
	ball, ok := c.balls[id]
	if ok {
		delete(c.balls, id)
		c.order = removeID(c.order, id)
	}
	c.mu.Unlock()

	if !ok {
		return models.PlinkoBall{}, ErrUnknownBall
	}
	c.settle(ball)
	c.publish(c.State())
	return ball, nil
}

func (c *PlinkoController) settle(ball models.PlinkoBall) {
	if ball.Winnings <= 0 {
		return
	}
	c.wallet.UpdateBalance(c.wallet.Balance() + ball.Winnings)
	c.notifier.Notify(winNotification(GameTypePlinko, ball.Winnings))
}

func (c *PlinkoController) History(ctx context.Context, page int) ([]models.PlinkoBall, models.Page, error) {
	balls, p, err := c.backend.PlinkoHistory(ctx, page)
	if err != nil {
		return nil, models.Page{}, c.fail(err)
	}
	if c.alive() {
		c.mu.Lock()
		c.history = balls
		c.page = p
		c.mu.Unlock()
	}
	return balls, p, nil
}

// Balls lists balls still animating, in drop order.
func (c *PlinkoController) Balls() []models.PlinkoBall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PlinkoBall, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.balls[id])
	}
	return out
}

func (c *PlinkoController) State() PlinkoState {
	state := PlinkoState{
		Balls:    c.Balls(),
		InFlight: c.InFlight(),
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	state.History = append([]models.PlinkoBall{}, c.history...)
	state.Page = c.page
	if c.last != nil {
		b := *c.last
		state.Last = &b
	}
	return state
}

func (c *PlinkoController) Snapshot() interface{} {
	return c.State()
}

// Close settles every ball still animating so no debit is left without its credit.
func (c *PlinkoController) Close() error {
	c.base.Close()

	c.mu.Lock()
	c.closed = true
	pending := make([]models.PlinkoBall, 0, len(c.order))
	for _, id := range c.order {
		pending = append(pending, c.balls[id])
	}
	c.balls = make(map[string]models.PlinkoBall)
	c.order = nil
	c.mu.Unlock()

	for _, ball := range pending {
		c.settle(ball)
	}
	return nil
}

func removeID(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

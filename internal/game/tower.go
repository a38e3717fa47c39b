package game

import (
	"context"
	"sync"

	"casinoclient/internal/models"

	log "github.com/sirupsen/logrus"
)

type TowerBackend interface {
	StartTower(ctx context.Context, amount int64, difficulty string) (models.TowerGame, error)
	PlayTower(ctx context.Context, gameID string, column int) (models.TowerGame, error)
	CashoutTower(ctx context.Context, gameID string) (models.TowerGame, error)
	TowerHistory(ctx context.Context, page int) ([]models.TowerGame, models.Page, error)
}

var towerDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

type TowerState struct {
	Game     *models.TowerGame  `json:"game,omitempty"`
	Choices  []int              `json:"choices"`
	Failed   []bool             `json:"failed_level,omitempty"`
	History  []models.TowerGame `json:"history"`
	Page     models.Page        `json:"page"`
	InFlight bool               `json:"in_flight"`
}

type TowerController struct {
	base
	backend TowerBackend

	mu      sync.RWMutex
	game    *models.TowerGame
	choices []int
	failed  []bool
	history []models.TowerGame
	page    models.Page
}

func NewTowerController(backend TowerBackend, wallet Wallet, notifier Notifier, hub Broadcaster) *TowerController {
	c := &TowerController{backend: backend}
	c.init(GameTypeTower, wallet, notifier, hub)
	return c
}

func (c *TowerController) Start(ctx context.Context, amount int64, difficulty string) (models.TowerGame, error) {
	if !towerDifficulties[difficulty] || amount <= 0 {
		return models.TowerGame{}, c.fail(ErrInvalidBet)
	}
	if c.active() != nil {
		return models.TowerGame{}, c.fail(ErrGameInProgress)
	}

	game, err := Place(ctx, c.action, amount, func(ctx context.Context) (models.TowerGame, error) {
		return c.backend.StartTower(ctx, amount, difficulty)
	}, nil)
	if err != nil || !c.alive() {
		return game, err
	}

	c.mu.Lock()
	g := game
	c.game = &g
	c.choices = nil
	c.failed = nil
	c.mu.Unlock()

	c.logger().WithFields(log.Fields{"game_id": game.ID, "difficulty": difficulty}).Info("Game started")
	c.publish(c.State())
	return game, nil
}

// Play picks a column on the current level. A safe pick advances exactly one level.
func (c *TowerController) Play(ctx context.Context, column int) (models.TowerGame, error) {
	current := c.active()
	if current == nil {
		return models.TowerGame{}, c.fail(ErrNoActiveGame)
	}
	if column < 0 {
		return models.TowerGame{}, c.fail(ErrInvalidBet)
	}

	game, err := Place(ctx, c.action, 0, func(ctx context.Context) (models.TowerGame, error) {
		return c.backend.PlayTower(ctx, current.ID, column)
	}, func(g models.TowerGame) int64 {
		if g.Status == models.GameWon {
			return g.Winnings
		}
		return 0
	})
	if err != nil || !c.alive() {
		return game, err
	}

	logger := c.logger().WithFields(log.Fields{"game_id": game.ID, "level": game.CurrentLevel})
	if game.Status != models.GameLost {
		if game.CurrentLevel != current.CurrentLevel+1 {
			logger.WithField("previous", current.CurrentLevel).Warn("Level did not advance by one")
		}
		if game.CurrentWinnings < current.CurrentWinnings {
			logger.Warn("Current winnings decreased")
		}
	}

	c.mu.Lock()
	c.choices = append(c.choices, column)
	if game.Status == models.GameLost {
		c.failed = append([]bool(nil), game.FailedLevel...)
	}
	g := game
	c.game = &g
	c.mu.Unlock()

	c.publish(c.State())
	return game, nil
}

// Cashout requires at least one cleared level.
func (c *TowerController) Cashout(ctx context.Context) (models.TowerGame, error) {
	current := c.active()
	if current == nil {
		return models.TowerGame{}, c.fail(ErrNoActiveGame)
	}
	if current.CurrentLevel < 1 {
		return models.TowerGame{}, c.fail(ErrNothingToCashout)
	}

	game, err := Place(ctx, c.action, 0, func(ctx context.Context) (models.TowerGame, error) {
		return c.backend.CashoutTower(ctx, current.ID)
	}, func(g models.TowerGame) int64 {
		return g.Winnings
	})
	if err != nil || !c.alive() {
		return game, err
	}

	c.mu.Lock()
	g := game
	c.game = &g
	c.mu.Unlock()

	c.logger().WithFields(log.Fields{"game_id": game.ID, "winnings": game.Winnings}).Info("Cashed out")
	c.publish(c.State())
	return game, nil
}

func (c *TowerController) History(ctx context.Context, page int) ([]models.TowerGame, models.Page, error) {
	games, p, err := c.backend.TowerHistory(ctx, page)
	if err != nil {
		return nil, models.Page{}, c.fail(err)
	}
	if c.alive() {
		c.mu.Lock()
		c.history = games
		c.page = p
		c.mu.Unlock()
	}
	return games, p, nil
}

func (c *TowerController) State() TowerState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := TowerState{
		Choices:  append([]int{}, c.choices...),
		Failed:   append([]bool(nil), c.failed...),
		History:  append([]models.TowerGame{}, c.history...),
		Page:     c.page,
		InFlight: c.InFlight(),
	}
	if c.game != nil {
		g := *c.game
		state.Game = &g
	}
	return state
}

func (c *TowerController) Snapshot() interface{} {
	return c.State()
}

func (c *TowerController) active() *models.TowerGame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.game == nil || c.game.Status.Finished() {
		return nil
	}
	g := *c.game
	return &g
}

package game

import (
	"context"
	"sync"

	"casinoclient/internal/models"

	log "github.com/sirupsen/logrus"
)

type MinesBackend interface {
	StartMines(ctx context.Context, amount int64, minesCount int) (models.MinesGame, error)
	RevealMines(ctx context.Context, gameID string, tile models.Tile) (models.MinesGame, error)
	CashoutMines(ctx context.Context, gameID string) (models.MinesGame, error)
	MinesHistory(ctx context.Context, page int) ([]models.MinesGame, models.Page, error)
}

const (
	MinesGridSide = 5
	MinesMinCount = 1
	MinesMaxCount = 24
)

type MinesState struct {
	Game     *models.MinesGame  `json:"game,omitempty"`
	Revealed []models.Tile      `json:"revealed"`
	Mines    []models.Tile      `json:"mines,omitempty"`
	History  []models.MinesGame `json:"history"`
	Page     models.Page        `json:"page"`
	InFlight bool               `json:"in_flight"`
}

type MinesController struct {
	base
	backend MinesBackend

	mu       sync.RWMutex
	game     *models.MinesGame
	revealed []models.Tile
	mines    []models.Tile
	history  []models.MinesGame
	page     models.Page
}

func NewMinesController(backend MinesBackend, wallet Wallet, notifier Notifier, hub Broadcaster) *MinesController {
	c := &MinesController{backend: backend}
	c.init(GameTypeMines, wallet, notifier, hub)
	return c
}

func (c *MinesController) Start(ctx context.Context, amount int64, minesCount int) (models.MinesGame, error) {
	if amount <= 0 || minesCount < MinesMinCount || minesCount > MinesMaxCount {
		return models.MinesGame{}, c.fail(ErrInvalidBet)
	}
	if c.active() != nil {
		return models.MinesGame{}, c.fail(ErrGameInProgress)
	}

	game, err := Place(ctx, c.action, amount, func(ctx context.Context) (models.MinesGame, error) {
		return c.backend.StartMines(ctx, amount, minesCount)
	}, nil)
	if err != nil || !c.alive() {
		return game, err
	}

	c.mu.Lock()
	g := game
	c.game = &g
	c.revealed = append([]models.Tile(nil), game.RevealedTiles...)
	c.mines = nil
	c.mu.Unlock()

	c.logger().WithFields(log.Fields{"game_id": game.ID, "mines": minesCount}).Info("Game started")
	c.publish(c.State())
	return game, nil
}

// Reveal picks a tile. Newly revealed tiles are appended to the accumulated set;
// a losing pick also exposes every mine.
func (c *MinesController) Reveal(ctx context.Context, tile models.Tile) (models.MinesGame, error) {
	current := c.active()
	if current == nil {
		return models.MinesGame{}, c.fail(ErrNoActiveGame)
	}
	if tile.Row < 0 || tile.Col < 0 || tile.Row >= MinesGridSide || tile.Col >= MinesGridSide {
		return models.MinesGame{}, c.fail(ErrInvalidBet)
	}

	game, err := Place(ctx, c.action, 0, func(ctx context.Context) (models.MinesGame, error) {
		return c.backend.RevealMines(ctx, current.ID, tile)
	}, func(g models.MinesGame) int64 {
		if g.Status == models.GameWon {
			return g.Winnings
		}
		return 0
	})
	if err != nil || !c.alive() {
		return game, err
	}

	c.mu.Lock()
	for _, t := range game.RevealedTiles {
		if !containsTile(c.revealed, t) {
			c.revealed = append(c.revealed, t)
		}
	}
	if game.Status == models.GameLost {
		c.mines = append([]models.Tile(nil), game.MineTiles...)
	}
	g := game
	g.RevealedTiles = append([]models.Tile(nil), c.revealed...)
	c.game = &g
	c.mu.Unlock()

	if game.Status == models.GameLost {
		c.logger().WithField("game_id", game.ID).Info("Mine hit")
	}
	c.publish(c.State())
	return game, nil
}

// Cashout requires at least one safely revealed tile.
func (c *MinesController) Cashout(ctx context.Context) (models.MinesGame, error) {
	current := c.active()
	if current == nil {
		return models.MinesGame{}, c.fail(ErrNoActiveGame)
	}
	c.mu.RLock()
	revealed := len(c.revealed)
	c.mu.RUnlock()
	if revealed == 0 {
		return models.MinesGame{}, c.fail(ErrNothingToCashout)
	}

	game, err := Place(ctx, c.action, 0, func(ctx context.Context) (models.MinesGame, error) {
		return c.backend.CashoutMines(ctx, current.ID)
	}, func(g models.MinesGame) int64 {
		return g.Winnings
	})
	if err != nil || !c.alive() {
		return game, err
	}

	c.mu.Lock()
	g := game
	g.RevealedTiles = append([]models.Tile(nil), c.revealed...)
	if len(game.MineTiles) > 0 {
		c.mines = append([]models.Tile(nil), game.MineTiles...)
	}
	c.game = &g
	c.mu.Unlock()

	c.logger().WithFields(log.Fields{"game_id": game.ID, "winnings": game.Winnings}).Info("Cashed out")
	c.publish(c.State())
	return game, nil
}

func (c *MinesController) History(ctx context.Context, page int) ([]models.MinesGame, models.Page, error) {
	games, p, err := c.backend.MinesHistory(ctx, page)
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

func (c *MinesController) State() MinesState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := MinesState{
		Revealed: append([]models.Tile{}, c.revealed...),
		Mines:    append([]models.Tile(nil), c.mines...),
		History:  append([]models.MinesGame{}, c.history...),
		Page:     c.page,
		InFlight: c.InFlight(),
	}
	if c.game != nil {
		g := *c.game
		state.Game = &g
	}
	return state
}

func (c *MinesController) Snapshot() interface{} {
	return c.State()
}

// active returns the in-progress game, or nil once it has finished.
func (c *MinesController) active() *models.MinesGame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.game == nil || c.game.Status.Finished() {
		return nil
	}
	g := *c.game
	return &g
}

func containsTile(tiles []models.Tile, t models.Tile) bool {
	for _, existing := range tiles {
		if existing == t {
			return true
		}
	}
	return false
}

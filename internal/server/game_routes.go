package server

import (
	"casinoclient/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RegisterGameRoutes registers read and action routes for every controller.
// Actions need a logged-in session.
func (s *FiberServer) RegisterGameRoutes() {
	api := s.App.Group("/api/v1")

	double := api.Group("/double")
	double.Get("/", s.doubleStateHandler)
	double.Get("/history", s.doubleHistoryHandler)
	double.Get("/archive", s.doubleArchiveHandler)
	double.Post("/bets", s.requireSession, s.doubleBetHandler)

	mines := api.Group("/mines")
	mines.Get("/", s.minesStateHandler)
	mines.Get("/history", s.minesHistoryHandler)
	mines.Post("/games", s.requireSession, s.minesStartHandler)
	mines.Post("/reveal", s.requireSession, s.minesRevealHandler)
	mines.Post("/cashout", s.requireSession, s.minesCashoutHandler)

	plinko := api.Group("/plinko")
	plinko.Get("/", s.plinkoStateHandler)
	plinko.Get("/history", s.plinkoHistoryHandler)
	plinko.Post("/balls", s.requireSession, s.plinkoPlayHandler)
	plinko.Post("/balls/:id/complete", s.plinkoCompleteHandler)

	tower := api.Group("/tower")
	tower.Get("/", s.towerStateHandler)
	tower.Get("/history", s.towerHistoryHandler)
	tower.Post("/games", s.requireSession, s.towerStartHandler)
	tower.Post("/play", s.requireSession, s.towerPlayHandler)
	tower.Post("/cashout", s.requireSession, s.towerCashoutHandler)

	limbo := api.Group("/limbo")
	limbo.Get("/", s.limboStateHandler)
	limbo.Get("/history", s.limboHistoryHandler)
	limbo.Post("/plays", s.requireSession, s.limboPlayHandler)

	scratch := api.Group("/scratch")
	scratch.Get("/", s.scratchStateHandler)
	scratch.Get("/history", s.scratchHistoryHandler)
	scratch.Get("/cards", s.scratchCardsHandler)
	scratch.Post("/cards/:id/tickets", s.requireSession, s.scratchBuyHandler)
}

type historyResponse struct {
	Items interface{} `json:"items"`
	Page  models.Page `json:"page"`
}

// Double

func (s *FiberServer) doubleStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.games.Double.State())
}

func (s *FiberServer) doubleHistoryHandler(c *fiber.Ctx) error {
	rounds, page, err := s.games.Double.FetchHistory(c.UserContext(), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return c.JSON(historyResponse{Items: rounds, Page: page})
}

const (
	defaultArchiveLimit = 20
	maxArchiveLimit     = 100
)

// doubleArchiveHandler serves completed rounds from the local archive, newest first.
func (s *FiberServer) doubleArchiveHandler(c *fiber.Ctx) error {
	if s.db == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "round archive not configured")
	}
	limit := c.QueryInt("limit", defaultArchiveLimit)
	if limit < 1 || limit > maxArchiveLimit {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 100")
	}

	rounds, err := s.db.RecentRounds(c.UserContext(), limit)
	if err != nil {
		return err
	}
	if rounds == nil {
		rounds = []models.DoubleRound{}
	}
	return c.JSON(fiber.Map{"items": rounds})
}

func (s *FiberServer) doubleBetHandler(c *fiber.Ctx) error {
	var req struct {
		Amount int64        `json:"amount"`
		Color  models.Color `json:"color"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}

	bet, err := s.games.Double.PlaceBet(c.UserContext(), req.Amount, req.Color)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(bet)
}

// Mines

func (s *FiberServer) minesStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.games.Mines.State())
}

func (s *FiberServer) minesHistoryHandler(c *fiber.Ctx) error {
	games, page, err := s.games.Mines.History(c.UserContext(), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return c.JSON(historyResponse{Items: games, Page: page})
}

func (s *FiberServer) minesStartHandler(c *fiber.Ctx) error {
	var req struct {
		Amount     int64 `json:"amount"`
		MinesCount int   `json:"mines_count"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}

	g, err := s.games.Mines.Start(c.UserContext(), req.Amount, req.MinesCount)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(g)
}

func (s *FiberServer) minesRevealHandler(c *fiber.Ctx) error {
	var tile models.Tile
	if err := c.BodyParser(&tile); err != nil {
		return errInvalidBody
	}

	g, err := s.games.Mines.Reveal(c.UserContext(), tile)
	if err != nil {
		return err
	}
	return c.JSON(g)
}

func (s *FiberServer) minesCashoutHandler(c *fiber.Ctx) error {
	g, err := s.games.Mines.Cashout(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(g)
}

// Plinko

func (s *FiberServer) plinkoStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.games.Plinko.State())
}

func (s *FiberServer) plinkoHistoryHandler(c *fiber.Ctx) error {
	balls, page, err := s.games.Plinko.History(c.UserContext(), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return c.JSON(historyResponse{Items: balls, Page: page})
}

func (s *FiberServer) plinkoPlayHandler(c *fiber.Ctx) error {
	var req struct {
		Amount int64             `json:"amount"`
		Risk   models.PlinkoRisk `json:"risk"`
		Rows   int               `json:"rows"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}

	ball, err := s.games.Plinko.Play(c.UserContext(), req.Amount, req.Risk, req.Rows)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ball)
}

// plinkoCompleteHandler is called by the UI when a ball's animation lands.
func (s *FiberServer) plinkoCompleteHandler(c *fiber.Ctx) error {
	ball, err := s.games.Plinko.CompleteBall(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(ball)
}

// Tower

func (s *FiberServer) towerStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.games.Tower.State())
}

func (s *FiberServer) towerHistoryHandler(c *fiber.Ctx) error {
	games, page, err := s.games.Tower.History(c.UserContext(), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return c.JSON(historyResponse{Items: games, Page: page})
}

func (s *FiberServer) towerStartHandler(c *fiber.Ctx) error {
	var req struct {
		Amount     int64  `json:"amount"`
		Difficulty string `json:"difficulty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}

	g, err := s.games.Tower.Start(c.UserContext(), req.Amount, req.Difficulty)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(g)
}

func (s *FiberServer) towerPlayHandler(c *fiber.Ctx) error {
	var req struct {
		Column *int `json:"column"`
	}
	if err := c.BodyParser(&req); err != nil || req.Column == nil {
		return errInvalidBody
	}

	g, err := s.games.Tower.Play(c.UserContext(), *req.Column)
	if err != nil {
		return err
	}
	return c.JSON(g)
}

func (s *FiberServer) towerCashoutHandler(c *fiber.Ctx) error {
	g, err := s.games.Tower.Cashout(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(g)
}

// Limbo

func (s *FiberServer) limboStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.games.Limbo.State())
}

func (s *FiberServer) limboHistoryHandler(c *fiber.Ctx) error {
	plays, page, err := s.games.Limbo.History(c.UserContext(), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return c.JSON(historyResponse{Items: plays, Page: page})
}

func (s *FiberServer) limboPlayHandler(c *fiber.Ctx) error {
	var req struct {
		Amount           int64   `json:"amount"`
		TargetMultiplier float64 `json:"target_multiplier"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}

	play, err := s.games.Limbo.Play(c.UserContext(), req.Amount, req.TargetMultiplier)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(play)
}

// Scratch cards

func (s *FiberServer) scratchStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.games.Scratch.State())
}

func (s *FiberServer) scratchHistoryHandler(c *fiber.Ctx) error {
	tickets, page, err := s.games.Scratch.History(c.UserContext(), c.QueryInt("page", 1))
	if err != nil {
		return err
	}
	return c.JSON(historyResponse{Items: tickets, Page: page})
}

func (s *FiberServer) scratchCardsHandler(c *fiber.Ctx) error {
	cards, err := s.games.Scratch.Cards(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(cards)
}

func (s *FiberServer) scratchBuyHandler(c *fiber.Ctx) error {
	ticket, err := s.games.Scratch.Buy(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ticket)
}

package api

import (
	"context"
	"net/http"

	"casinoclient/internal/models"
)

func (c *Client) StartMines(ctx context.Context, amount int64, minesCount int) (models.MinesGame, error) {
	body := map[string]interface{}{"amount": amount, "mines_count": minesCount}
	return single[models.MinesGame, minesGameResource](ctx, c, http.MethodPost, "/mines/games", body)
}

// RevealMines picks a tile. The returned game's RevealedTiles holds only the newly uncovered tiles.
func (c *Client) RevealMines(ctx context.Context, gameID string, tile models.Tile) (models.MinesGame, error) {
	return single[models.MinesGame, minesGameResource](ctx, c, http.MethodPost, resourcePath("/mines/games", gameID, "reveal"), tile)
}

func (c *Client) CashoutMines(ctx context.Context, gameID string) (models.MinesGame, error) {
	return single[models.MinesGame, minesGameResource](ctx, c, http.MethodPost, resourcePath("/mines/games", gameID, "cashout"), nil)
}

func (c *Client) MinesHistory(ctx context.Context, page int) ([]models.MinesGame, models.Page, error) {
	return list[models.MinesGame, minesGameResource](ctx, c, "/mines/games", page)
}

func (c *Client) PlayPlinko(ctx context.Context, amount int64, risk models.PlinkoRisk, rows int) (models.PlinkoBall, error) {
	body := map[string]interface{}{"amount": amount, "risk": risk, "rows": rows}
	return single[models.PlinkoBall, plinkoPlayResource](ctx, c, http.MethodPost, "/plinko/plays", body)
}

func (c *Client) PlinkoHistory(ctx context.Context, page int) ([]models.PlinkoBall, models.Page, error) {
	return list[models.PlinkoBall, plinkoPlayResource](ctx, c, "/plinko/plays", page)
}

func (c *Client) StartTower(ctx context.Context, amount int64, difficulty string) (models.TowerGame, error) {
	body := map[string]interface{}{"amount": amount, "difficulty": difficulty}
	return single[models.TowerGame, towerGameResource](ctx, c, http.MethodPost, "/tower/games", body)
}

func (c *Client) PlayTower(ctx context.Context, gameID string, column int) (models.TowerGame, error) {
	body := map[string]interface{}{"column": column}
	return single[models.TowerGame, towerGameResource](ctx, c, http.MethodPost, resourcePath("/tower/games", gameID, "play"), body)
}

func (c *Client) CashoutTower(ctx context.Context, gameID string) (models.TowerGame, error) {
	return single[models.TowerGame, towerGameResource](ctx, c, http.MethodPost, resourcePath("/tower/games", gameID, "cashout"), nil)
}

func (c *Client) TowerHistory(ctx context.Context, page int) ([]models.TowerGame, models.Page, error) {
	return list[models.TowerGame, towerGameResource](ctx, c, "/tower/games", page)
}

func (c *Client) PlayLimbo(ctx context.Context, amount int64, target float64) (models.LimboPlay, error) {
	body := map[string]interface{}{"amount": amount, "target_multiplier": target}
	return single[models.LimboPlay, limboPlayResource](ctx, c, http.MethodPost, "/limbo/plays", body)
}

func (c *Client) LimboHistory(ctx context.Context, page int) ([]models.LimboPlay, models.Page, error) {
	return list[models.LimboPlay, limboPlayResource](ctx, c, "/limbo/plays", page)
}

func (c *Client) ScratchCards(ctx context.Context) ([]models.ScratchCard, error) {
	raw, _, err := c.call(ctx, http.MethodGet, "/scratch_cards", nil)
	if err != nil {
		return nil, err
	}
	return unmarshalMany[models.ScratchCard, scratchCardResource](raw)
}

func (c *Client) BuyScratchTicket(ctx context.Context, cardID string) (models.ScratchTicket, error) {
	return single[models.ScratchTicket, scratchTicketResource](ctx, c, http.MethodPost, resourcePath("/scratch_cards", cardID, "tickets"), nil)
}

func (c *Client) ScratchHistory(ctx context.Context, page int) ([]models.ScratchTicket, models.Page, error) {
	return list[models.ScratchTicket, scratchTicketResource](ctx, c, "/scratch_tickets", page)
}

package api

import (
	"context"
	"net/http"

	"casinoclient/internal/models"
)

type doubleBetRequest struct {
	RoundID string       `json:"round_id"`
	Amount  int64        `json:"amount"`
	Color   models.Color `json:"color"`
}

func (c *Client) PlaceDoubleBet(ctx context.Context, roundID string, amount int64, color models.Color) (models.DoubleBet, error) {
	bet, err := single[models.DoubleBet, doubleBetResource](ctx, c, http.MethodPost, "/double/bets", doubleBetRequest{
		RoundID: roundID,
		Amount:  amount,
		Color:   color,
	})
	if err != nil {
		return bet, err
	}
	if bet.RoundID == "" {
		bet.RoundID = roundID
	}
	return bet, nil
}

// ForceDraw asks the backend to resolve a round whose betting window has expired locally.
func (c *Client) ForceDraw(ctx context.Context, roundID string) error {
	_, _, err := c.call(ctx, http.MethodPost, resourcePath("/double/rounds", roundID, "draw"), nil)
	return err
}

func (c *Client) DoubleHistory(ctx context.Context, page int) ([]models.DoubleRound, models.Page, error) {
	return list[models.DoubleRound, doubleRoundResource](ctx, c, "/double/rounds", page)
}

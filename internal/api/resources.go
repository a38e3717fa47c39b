package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"casinoclient/internal/models"

	"github.com/google/jsonapi"
)

var ErrNoData = errors.New("api: document has no primary data")

// resource is a JSON:API wire type that converts into a domain model.
type resource[T any] interface {
	model() T
}

// unmarshalOne decodes a single-resource document. Relationships are resolved from included by id and type.
func unmarshalOne[T any, R any, PR interface {
	*R
	resource[T]
}](raw []byte) (T, error) {
	var zero T
	if !hasPrimary(raw) {
		return zero, ErrNoData
	}
	r := PR(new(R))
	if err := jsonapi.UnmarshalPayload(bytes.NewReader(raw), r); err != nil {
		return zero, fmt.Errorf("decode document: %w", err)
	}
	return r.model(), nil
}

func unmarshalMany[T any, R any, PR interface {
	*R
	resource[T]
}](raw []byte) ([]T, error) {
	if !hasPrimary(raw) {
		return []T{}, nil
	}
	items, err := jsonapi.UnmarshalManyPayload(bytes.NewReader(raw), reflect.TypeOf(new(R)))
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, item.(PR).model())
	}
	return out, nil
}

func hasPrimary(raw []byte) bool {
	var doc struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Let the decoder report the malformed body.
		return true
	}
	data := bytes.TrimSpace(doc.Data)
	return len(data) > 0 && !bytes.Equal(data, []byte("null"))
}

type userResource struct {
	ID            string `jsonapi:"primary,users"`
	Username      string `jsonapi:"attr,username"`
	Email         string `jsonapi:"attr,email"`
	Balance       int64  `jsonapi:"attr,balance"`
	Admin         bool   `jsonapi:"attr,admin"`
	ReferralCode  string `jsonapi:"attr,referral_code"`
	CanClaimDaily bool   `jsonapi:"attr,can_claim_daily"`
	AvatarURL     string `jsonapi:"attr,avatar_url"`
}

func (r *userResource) model() models.User {
	return models.User{
		ID:            r.ID,
		Username:      r.Username,
		Email:         r.Email,
		Balance:       r.Balance,
		Admin:         r.Admin,
		ReferralCode:  r.ReferralCode,
		CanClaimDaily: r.CanClaimDaily,
		AvatarURL:     r.AvatarURL,
	}
}

type doubleRoundResource struct {
	ID           string               `jsonapi:"primary,double_rounds"`
	Status       models.RoundStatus   `jsonapi:"attr,status"`
	WinningColor models.Color         `jsonapi:"attr,winning_color"`
	CreatedAt    time.Time            `jsonapi:"attr,created_at,iso8601"`
	Bets         []*doubleBetResource `jsonapi:"relation,bets"`
}

func (r *doubleRoundResource) model() models.DoubleRound {
	round := models.DoubleRound{
		ID:           r.ID,
		Status:       r.Status,
		WinningColor: r.WinningColor,
		CreatedAt:    r.CreatedAt,
		Bets:         make([]models.DoubleBet, 0, len(r.Bets)),
	}
	for _, b := range r.Bets {
		bet := b.model()
		bet.RoundID = r.ID
		round.Bets = append(round.Bets, bet)
	}
	return round
}

// roundRef is a bare linkage; it carries no relationships so decoding never cycles back into bets.
type roundRef struct {
	ID string `jsonapi:"primary,double_rounds"`
}

type doubleBetResource struct {
	ID       string           `jsonapi:"primary,double_bets"`
	Amount   int64            `jsonapi:"attr,amount"`
	Color    models.Color     `jsonapi:"attr,color"`
	Status   models.BetStatus `jsonapi:"attr,status"`
	Winnings int64            `jsonapi:"attr,winnings"`
	User     *userResource    `jsonapi:"relation,user"`
	Round    *roundRef        `jsonapi:"relation,round"`
}

func (r *doubleBetResource) model() models.DoubleBet {
	bet := models.DoubleBet{
		ID:       r.ID,
		Amount:   r.Amount,
		Color:    r.Color,
		Status:   r.Status,
		Winnings: r.Winnings,
	}
	if r.User != nil {
		bet.UserID = r.User.ID
		bet.Username = r.User.Username
	}
	if r.Round != nil {
		bet.RoundID = r.Round.ID
	}
	return bet
}

type tileAttribute struct {
	Row int `jsonapi:"attr,row"`
	Col int `jsonapi:"attr,col"`
}

func tiles(in []tileAttribute) []models.Tile {
	if in == nil {
		return nil
	}
	out := make([]models.Tile, 0, len(in))
	for _, t := range in {
		out = append(out, models.Tile{Row: t.Row, Col: t.Col})
	}
	return out
}

type minesGameResource struct {
	ID            string            `jsonapi:"primary,mines_games"`
	BetAmount     int64             `jsonapi:"attr,bet_amount"`
	MinesCount    int               `jsonapi:"attr,mines_count"`
	Status        models.GameStatus `jsonapi:"attr,status"`
	RevealedTiles []tileAttribute   `jsonapi:"attr,revealed_tiles"`
	MineTiles     []tileAttribute   `jsonapi:"attr,mine_tiles"`
	Multiplier    float64           `jsonapi:"attr,multiplier"`
	Winnings      int64             `jsonapi:"attr,winnings"`
	CreatedAt     time.Time         `jsonapi:"attr,created_at,iso8601"`
}

func (r *minesGameResource) model() models.MinesGame {
	return models.MinesGame{
		ID:            r.ID,
		BetAmount:     r.BetAmount,
		MinesCount:    r.MinesCount,
		Status:        r.Status,
		RevealedTiles: tiles(r.RevealedTiles),
		MineTiles:     tiles(r.MineTiles),
		Multiplier:    r.Multiplier,
		Winnings:      r.Winnings,
		CreatedAt:     r.CreatedAt,
	}
}

type plinkoPlayResource struct {
	ID         string            `jsonapi:"primary,plinko_plays"`
	BetAmount  int64             `jsonapi:"attr,bet_amount"`
	Risk       models.PlinkoRisk `jsonapi:"attr,risk"`
	Rows       int               `jsonapi:"attr,rows"`
	Path       []string          `jsonapi:"attr,path"`
	Multiplier float64           `jsonapi:"attr,multiplier"`
	Winnings   int64             `jsonapi:"attr,winnings"`
	CreatedAt  time.Time         `jsonapi:"attr,created_at,iso8601"`
}

func (r *plinkoPlayResource) model() models.PlinkoBall {
	return models.PlinkoBall{
		ID:         r.ID,
		BetAmount:  r.BetAmount,
		Risk:       r.Risk,
		Rows:       r.Rows,
		Path:       r.Path,
		Multiplier: r.Multiplier,
		Winnings:   r.Winnings,
		CreatedAt:  r.CreatedAt,
	}
}

// towerGameResource keeps choices and failed_level as raw JSON arrays: the
// decoder only converts []string and struct slices element by element.
type towerGameResource struct {
	ID              string            `jsonapi:"primary,tower_games"`
	BetAmount       int64             `jsonapi:"attr,bet_amount"`
	Difficulty      string            `jsonapi:"attr,difficulty"`
	Status          models.GameStatus `jsonapi:"attr,status"`
	CurrentLevel    int               `jsonapi:"attr,current_level"`
	CurrentWinnings int64             `jsonapi:"attr,current_winnings"`
	Choices         []interface{}     `jsonapi:"attr,choices"`
	FailedLevel     []interface{}     `jsonapi:"attr,failed_level"`
	Winnings        int64             `jsonapi:"attr,winnings"`
	CreatedAt       time.Time         `jsonapi:"attr,created_at,iso8601"`
}

func (r *towerGameResource) model() models.TowerGame {
	game := models.TowerGame{
		ID:              r.ID,
		BetAmount:       r.BetAmount,
		Difficulty:      r.Difficulty,
		Status:          r.Status,
		CurrentLevel:    r.CurrentLevel,
		CurrentWinnings: r.CurrentWinnings,
		Winnings:        r.Winnings,
		CreatedAt:       r.CreatedAt,
	}
	for _, v := range r.Choices {
		if n, ok := v.(float64); ok {
			game.Choices = append(game.Choices, int(n))
		}
	}
	for _, v := range r.FailedLevel {
		if b, ok := v.(bool); ok {
			game.FailedLevel = append(game.FailedLevel, b)
		}
	}
	return game
}

type limboPlayResource struct {
	ID               string    `jsonapi:"primary,limbo_plays"`
	BetAmount        int64     `jsonapi:"attr,bet_amount"`
	TargetMultiplier float64   `jsonapi:"attr,target_multiplier"`
	ResultMultiplier float64   `jsonapi:"attr,result_multiplier"`
	Won              bool      `jsonapi:"attr,won"`
	Winnings         int64     `jsonapi:"attr,winnings"`
	CreatedAt        time.Time `jsonapi:"attr,created_at,iso8601"`
}

func (r *limboPlayResource) model() models.LimboPlay {
	return models.LimboPlay{
		ID:               r.ID,
		BetAmount:        r.BetAmount,
		TargetMultiplier: r.TargetMultiplier,
		ResultMultiplier: r.ResultMultiplier,
		Won:              r.Won,
		Winnings:         r.Winnings,
		CreatedAt:        r.CreatedAt,
	}
}

type scratchCardResource struct {
	ID       string `jsonapi:"primary,scratch_cards"`
	Name     string `jsonapi:"attr,name"`
	Price    int64  `jsonapi:"attr,price"`
	TopPrize int64  `jsonapi:"attr,top_prize"`
}

func (r *scratchCardResource) model() models.ScratchCard {
	return models.ScratchCard{ID: r.ID, Name: r.Name, Price: r.Price, TopPrize: r.TopPrize}
}

type scratchTicketResource struct {
	ID        string               `jsonapi:"primary,scratch_tickets"`
	Price     int64                `jsonapi:"attr,price"`
	Symbols   []string             `jsonapi:"attr,symbols"`
	Winnings  int64                `jsonapi:"attr,winnings"`
	CreatedAt time.Time            `jsonapi:"attr,created_at,iso8601"`
	Card      *scratchCardResource `jsonapi:"relation,scratch_card"`
}

func (r *scratchTicketResource) model() models.ScratchTicket {
	ticket := models.ScratchTicket{
		ID:        r.ID,
		Price:     r.Price,
		Symbols:   r.Symbols,
		Winnings:  r.Winnings,
		CreatedAt: r.CreatedAt,
	}
	if r.Card != nil {
		ticket.CardID = r.Card.ID
		ticket.CardName = r.Card.Name
		if ticket.Price == 0 {
			ticket.Price = r.Card.Price
		}
	}
	return ticket
}

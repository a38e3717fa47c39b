package models

import "time"

type GameStatus string

const (
	GameActive    GameStatus = "active"
	GameWon       GameStatus = "won"
	GameLost      GameStatus = "lost"
	GameCashedOut GameStatus = "cashed_out"
)

// Finished reports whether no further plays are accepted for the game.
func (s GameStatus) Finished() bool {
	return s == GameWon || s == GameLost || s == GameCashedOut
}

type Tile struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// MinesGame mirrors the server's view of a mines attempt. On a reveal response
// RevealedTiles holds only the tiles uncovered by that pick.
type MinesGame struct {
	ID            string     `json:"id"`
	BetAmount     int64      `json:"bet_amount"`
	MinesCount    int        `json:"mines_count"`
	Status        GameStatus `json:"status"`
	RevealedTiles []Tile     `json:"revealed_tiles"`
	MineTiles     []Tile     `json:"mine_tiles,omitempty"`
	Multiplier    float64    `json:"multiplier"`
	Winnings      int64      `json:"winnings"`
	CreatedAt     time.Time  `json:"created_at"`
}

type PlinkoRisk string

const (
	PlinkoRiskLow    PlinkoRisk = "low"
	PlinkoRiskMedium PlinkoRisk = "medium"
	PlinkoRiskHigh   PlinkoRisk = "high"
)

// PlinkoBall is one server-resolved drop. Path holds "L"/"R" steps, top row first.
type PlinkoBall struct {
	ID         string     `json:"id"`
	BetAmount  int64      `json:"bet_amount"`
	Risk       PlinkoRisk `json:"risk"`
	Rows       int        `json:"rows"`
	Path       []string   `json:"path"`
	Multiplier float64    `json:"multiplier"`
	Winnings   int64      `json:"winnings"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TowerGame is level-indexed; CurrentLevel counts cleared levels.
type TowerGame struct {
	ID              string     `json:"id"`
	BetAmount       int64      `json:"bet_amount"`
	Difficulty      string     `json:"difficulty"`
	Status          GameStatus `json:"status"`
	CurrentLevel    int        `json:"current_level"`
	CurrentWinnings int64      `json:"current_winnings"`
	Choices         []int      `json:"choices"`
	FailedLevel     []bool     `json:"failed_level,omitempty"`
	Winnings        int64      `json:"winnings"`
	CreatedAt       time.Time  `json:"created_at"`
}

type LimboPlay struct {
	ID               string    `json:"id"`
	BetAmount        int64     `json:"bet_amount"`
	TargetMultiplier float64   `json:"target_multiplier"`
	ResultMultiplier float64   `json:"result_multiplier"`
	Won              bool      `json:"won"`
	Winnings         int64     `json:"winnings"`
	CreatedAt        time.Time `json:"created_at"`
}

type ScratchCard struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	TopPrize int64  `json:"top_prize"`
}

type ScratchTicket struct {
	ID        string    `json:"id"`
	CardID    string    `json:"card_id"`
	CardName  string    `json:"card_name"`
	Price     int64     `json:"price"`
	Symbols   []string  `json:"symbols"`
	Winnings  int64     `json:"winnings"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import "time"

type Color string

const (
	ColorRed   Color = "red"
	ColorBlack Color = "black"
	ColorWhite Color = "white"
)

func (c Color) Valid() bool {
	switch c {
	case ColorRed, ColorBlack, ColorWhite:
		return true
	}
	return false
}

type RoundStatus string

const (
	RoundBetting   RoundStatus = "betting"
	RoundSpinning  RoundStatus = "spinning"
	RoundCompleted RoundStatus = "completed"
)

// Rank orders statuses along the betting -> spinning -> completed lifecycle.
func (s RoundStatus) Rank() int {
	switch s {
	case RoundBetting:
		return 1
	case RoundSpinning:
		return 2
	case RoundCompleted:
		return 3
	}
	return 0
}

type BetStatus string

const (
	BetPending BetStatus = ""
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
)

// DoubleRound is one betting/resolution cycle of the Double game.
type DoubleRound struct {
	ID           string      `json:"id"`
	Status       RoundStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	WinningColor Color       `json:"winning_color,omitempty"`
	Bets         []DoubleBet `json:"bets"`
}

// Clone returns a deep copy so snapshots never alias controller state.
func (r DoubleRound) Clone() DoubleRound {
	out := r
	out.Bets = append([]DoubleBet(nil), r.Bets...)
	return out
}

type DoubleBet struct {
	ID       string    `json:"id"`
	RoundID  string    `json:"round_id,omitempty"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Amount   int64     `json:"amount"`
	Color    Color     `json:"color"`
	Status   BetStatus `json:"status,omitempty"`
	Winnings int64     `json:"winnings"`
}

package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"casinoclient/internal/models"
)

var ErrUnknownEvent = errors.New("unknown double event")

// Event is one typed message from the Double channel. The set is closed: only
// the types in this file implement it.
type Event interface {
	eventType() string
}

type CurrentStateEvent struct {
	Round   models.DoubleRound
	History []models.DoubleRound
}

type NewRoundEvent struct {
	Round models.DoubleRound
}

type NewBetEvent struct {
	RoundID string
	Bet     models.DoubleBet
}

type SpinningEvent struct {
	RoundID      string
	WinningColor models.Color
}

type CompletedEvent struct {
	Round models.DoubleRound
}

func (CurrentStateEvent) eventType() string { return "current_state" }
func (NewRoundEvent) eventType() string     { return "new_round" }
func (NewBetEvent) eventType() string       { return "new_bet" }
func (SpinningEvent) eventType() string     { return "spinning" }
func (CompletedEvent) eventType() string    { return "completed" }

type eventEnvelope struct {
	Type         string               `json:"type"`
	Round        *models.DoubleRound  `json:"round"`
	History      []models.DoubleRound `json:"history"`
	RoundID      models.ID            `json:"round_id"`
	Bet          *models.DoubleBet    `json:"bet"`
	WinningColor models.Color         `json:"winning_color"`
}

func DecodeEvent(raw []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch env.Type {
	case "current_state":
		if env.Round == nil {
			return nil, fmt.Errorf("%s: missing round", env.Type)
		}
		return CurrentStateEvent{Round: *env.Round, History: env.History}, nil
	case "new_round":
		if env.Round == nil {
			return nil, fmt.Errorf("%s: missing round", env.Type)
		}
		return NewRoundEvent{Round: *env.Round}, nil
	case "new_bet":
		if env.Bet == nil {
			return nil, fmt.Errorf("%s: missing bet", env.Type)
		}
		roundID := string(env.RoundID)
		if roundID == "" {
			roundID = env.Bet.RoundID
		}
		bet := *env.Bet
		bet.RoundID = roundID
		return NewBetEvent{RoundID: roundID, Bet: bet}, nil
	case "spinning":
		return SpinningEvent{RoundID: string(env.RoundID), WinningColor: env.WinningColor}, nil
	case "completed":
		if env.Round == nil {
			return nil, fmt.Errorf("%s: missing round", env.Type)
		}
		return CompletedEvent{Round: *env.Round}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

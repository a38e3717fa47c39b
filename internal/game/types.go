package game

import (
	"errors"

	"casinoclient/internal/models"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrActionInFlight      = errors.New("action already in flight")
	ErrInvalidBet          = errors.New("invalid bet")
	ErrBettingClosed       = errors.New("betting is closed")
	ErrNoActiveGame        = errors.New("no active game")
	ErrGameInProgress      = errors.New("a game is already in progress")
	ErrNothingToCashout    = errors.New("nothing to cash out")
	ErrUnknownBall         = errors.New("unknown ball")
	ErrControllerClosed    = errors.New("controller closed")
)

// Wallet is the balance surface every controller reads and writes.
type Wallet interface {
	Balance() int64
	UpdateBalance(balance int64)
}

// Account is a Wallet that also knows whose bets are local.
type Account interface {
	Wallet
	UserID() string
}

type Broadcaster interface {
	Broadcast(message interface{})
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
	NotifyInfo    NotificationLevel = "info"
)

// Notification is a transient user-visible message.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Game    GameType          `json:"game"`
	Message string            `json:"message"`
	Amount  int64             `json:"amount,omitempty"`
	Display string            `json:"display,omitempty"`
}

type Notifier interface {
	Notify(n Notification)
}

type broadcastNotifier struct {
	hub Broadcaster
}

// NewNotifier publishes notifications to hub as "notification" messages.
func NewNotifier(hub Broadcaster) Notifier {
	return &broadcastNotifier{hub: hub}
}

func (b *broadcastNotifier) Notify(n Notification) {
	if n.Amount != 0 && n.Display == "" {
		n.Display = models.FormatAmount(n.Amount)
	}
	b.hub.Broadcast(Message{Type: "notification", Data: n})
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func winNotification(game GameType, amount int64) Notification {
	return Notification{
		Level:   NotifySuccess,
		Game:    game,
		Message: "You won " + models.FormatAmount(amount),
		Amount:  amount,
	}
}

func errorNotification(game GameType, err error) Notification {
	return Notification{
		Level:   NotifyError,
		Game:    game,
		Message: err.Error(),
	}
}

package game

import (
	"context"
	"errors"
	"sync/atomic"

	"casinoclient/internal/models"

	log "github.com/sirupsen/logrus"
)

// Action gates one user-triggerable operation: at most one request in flight,
// balance debited before the request and restored exactly on failure.
type Action struct {
	game     GameType
	wallet   Wallet
	notifier Notifier
	inFlight atomic.Bool
}

func NewAction(game GameType, wallet Wallet, notifier Notifier) *Action {
	return &Action{
		game:     game,
		wallet:   wallet,
		notifier: notifierOrNop(notifier),
	}
}

func (a *Action) InFlight() bool {
	return a.inFlight.Load()
}

// Place runs request under the optimistic balance protocol. wager may be zero for
// actions that cost nothing (reveal, cashout). winnings, when non-nil, extracts the
// amount credited on success; nil leaves the debited balance as is.
func Place[T any](ctx context.Context, a *Action, wager int64, request func(context.Context) (T, error), winnings func(T) int64) (T, error) {
	var zero T
	if wager < 0 {
		return zero, ErrInvalidBet
	}
	if !a.inFlight.CompareAndSwap(false, true) {
		return zero, ErrActionInFlight
	}
	defer a.inFlight.Store(false)

	logger := log.WithFields(log.Fields{"component": string(a.game), "wager": wager})

	before := a.wallet.Balance()
	if before < wager {
		a.notifier.Notify(errorNotification(a.game, ErrInsufficientBalance))
		return zero, ErrInsufficientBalance
	}
	if wager > 0 {
		a.wallet.UpdateBalance(before - wager)
	}

	result, err := request(ctx)
	if err != nil {
		if wager > 0 {
			a.wallet.UpdateBalance(before)
			logger.WithError(err).WithField("restored", before).Warn("Request failed, balance rolled back")
		}
		a.notifier.Notify(errorNotification(a.game, requestError(err)))
		return zero, err
	}

	if winnings != nil {
		if won := winnings(result); won > 0 {
			a.wallet.UpdateBalance(a.wallet.Balance() + won)
			a.notifier.Notify(winNotification(a.game, won))
			logger.WithField("winnings", models.FormatAmount(won)).Debug("Winnings applied")
		}
	}
	return result, nil
}

func requestError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("request timed out")
	}
	return err
}

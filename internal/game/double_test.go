package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"casinoclient/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoubleBackend struct {
	mu       sync.Mutex
	draws    []string
	drawErrs []error
	bets     []models.DoubleBet
	betErr   error
	betHook  func()
	history  []models.DoubleRound
}

func (f *fakeDoubleBackend) PlaceDoubleBet(ctx context.Context, roundID string, amount int64, color models.Color) (models.DoubleBet, error) {
	if f.betHook != nil {
		f.betHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.betErr != nil {
		return models.DoubleBet{}, f.betErr
	}
	bet := models.DoubleBet{
		ID:      fmt.Sprintf("b%d", len(f.bets)+1),
		RoundID: roundID,
		UserID:  "me",
		Amount:  amount,
		Color:   color,
	}
	f.bets = append(f.bets, bet)
	return bet, nil
}

func (f *fakeDoubleBackend) ForceDraw(ctx context.Context, roundID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draws = append(f.draws, roundID)
	if len(f.drawErrs) > 0 {
		err := f.drawErrs[0]
		f.drawErrs = f.drawErrs[1:]
		return err
	}
	return nil
}

func (f *fakeDoubleBackend) DoubleHistory(ctx context.Context, page int) ([]models.DoubleRound, models.Page, error) {
	return f.history, models.Page{Current: page, Total: 1}, nil
}

func (f *fakeDoubleBackend) drawCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.draws)
}

type fakeSub struct {
	ch     chan json.RawMessage
	closes atomic.Int32
}

func newFakeSub() *fakeSub {
	return &fakeSub{ch: make(chan json.RawMessage, 16)}
}

func (s *fakeSub) Messages() <-chan json.RawMessage { return s.ch }

func (s *fakeSub) Close() error {
	s.closes.Add(1)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var roundStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type doubleHarness struct {
	d        *DoubleController
	backend  *fakeDoubleBackend
	wallet   *fakeWallet
	clock    *testClock
	hub      *recordingHub
	notifier *recordingNotifier
	sub      *fakeSub
}

// newDoubleHarness builds a controller whose force draws run inline; tests drive
// handle/tick directly instead of starting the loop.
func newDoubleHarness(balance int64) *doubleHarness {
	h := &doubleHarness{
		backend:  &fakeDoubleBackend{},
		wallet:   newWallet(balance),
		clock:    &testClock{now: roundStart},
		hub:      &recordingHub{},
		notifier: &recordingNotifier{},
		sub:      newFakeSub(),
	}
	h.d = NewDoubleController(h.backend, h.wallet, h.sub, h.hub, h.notifier,
		DoubleConfig{BettingPeriod: 30 * time.Second, HistorySize: 3},
		WithClock(h.clock.Now))
	h.d.dispatch = func(fn func()) { fn() }
	return h
}

func (h *doubleHarness) settleDraws() {
	for {
		select {
		case res := <-h.d.drawResults:
			h.d.handleDrawResult(res)
		default:
			return
		}
	}
}

func (h *doubleHarness) at(offset time.Duration) {
	h.clock.Set(roundStart.Add(offset))
}

func bettingRound(id string) models.DoubleRound {
	return models.DoubleRound{ID: id, Status: models.RoundBetting, CreatedAt: roundStart}
}

func TestDouble_NewBetsAppendToCurrentRound(t *testing.T) {
	h := newDoubleHarness(1000)

	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	for i := 0; i < 5; i++ {
		h.d.handle(NewBetEvent{RoundID: "r1", Bet: models.DoubleBet{ID: fmt.Sprintf("b%d", i), Amount: 10}})
	}
	h.d.handle(NewBetEvent{RoundID: "r0", Bet: models.DoubleBet{ID: "stale"}})

	state := h.d.State()
	require.NotNil(t, state.Round)
	assert.Len(t, state.Round.Bets, 5)

	h.d.handle(NewRoundEvent{Round: bettingRound("r2")})
	assert.Empty(t, h.d.State().Round.Bets, "new_round replaces the round wholesale")

	h.d.handle(CurrentStateEvent{Round: bettingRound("r3")})
	h.d.handle(NewBetEvent{RoundID: "r3", Bet: models.DoubleBet{ID: "x"}})
	h.d.handle(NewBetEvent{RoundID: "r3", Bet: models.DoubleBet{ID: "y"}})
	assert.Len(t, h.d.State().Round.Bets, 2)
}

func TestDouble_Countdown(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"Fresh round", 0, 30},
		{"Joined late", 12 * time.Second, 18},
		{"Partial second rounds up", 29500 * time.Millisecond, 1},
		{"Expired clamps to zero", 45 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newDoubleHarness(0)
			h.at(tt.elapsed)
			h.d.handle(CurrentStateEvent{Round: bettingRound("r1")})

			assert.Equal(t, PhaseBetting, h.d.Phase())
			assert.Equal(t, tt.want, h.d.Countdown())
		})
	}
}

func TestDouble_DeadlineFollowsClock(t *testing.T) {
	h := newDoubleHarness(0)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})

	h.at(10 * time.Second)
	assert.Equal(t, 20, h.d.Countdown())

	// A suspended process resumes far past the deadline.
	h.at(5 * time.Minute)
	assert.Equal(t, 0, h.d.Countdown())
}

func TestDouble_SpinningStopsCountdown(t *testing.T) {
	h := newDoubleHarness(0)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	h.at(5 * time.Second)

	h.d.handle(SpinningEvent{RoundID: "other", WinningColor: models.ColorRed})
	assert.Equal(t, PhaseBetting, h.d.Phase(), "spinning for another round is ignored")

	h.d.handle(SpinningEvent{RoundID: "r1", WinningColor: models.ColorWhite})
	state := h.d.State()
	assert.Equal(t, PhaseSpinning, state.Phase)
	assert.Equal(t, 0, state.Countdown)
	assert.Nil(t, state.Deadline)
	assert.Equal(t, models.ColorWhite, state.Round.WinningColor)

	h.at(40 * time.Second)
	h.d.tick()
	assert.Zero(t, h.backend.drawCount(), "no force draw once spinning")
}

func TestDouble_ForceDrawIssuedOncePerPhase(t *testing.T) {
	h := newDoubleHarness(0)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})

	for s := 0; s < 30; s++ {
		h.at(time.Duration(s) * time.Second)
		h.d.tick()
	}
	assert.Zero(t, h.backend.drawCount(), "no draw before the deadline")

	h.at(30200 * time.Millisecond)
	h.d.tick()
	h.settleDraws()
	assert.Equal(t, 1, h.backend.drawCount())

	for i := 0; i < 5; i++ {
		h.at(31*time.Second + time.Duration(i)*time.Second)
		h.d.tick()
		h.settleDraws()
	}
	assert.Equal(t, 1, h.backend.drawCount(), "guard holds on every later tick")
	assert.True(t, h.d.State().DrawTriggered)
}

func TestDouble_ForceDrawRetriesAfterFailure(t *testing.T) {
	h := newDoubleHarness(0)
	h.backend.drawErrs = []error{errors.New("503")}
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	h.at(31 * time.Second)

	h.d.tick()
	assert.Equal(t, 1, h.backend.drawCount())
	h.d.tick()
	assert.Equal(t, 1, h.backend.drawCount(), "failure is not observed until its result is handled")

	h.settleDraws()
	assert.False(t, h.d.State().DrawTriggered)

	h.d.tick()
	h.settleDraws()
	assert.Equal(t, 2, h.backend.drawCount(), "exactly one retry on the next tick")

	h.d.tick()
	h.settleDraws()
	assert.Equal(t, 2, h.backend.drawCount())
	assert.Equal(t, []string{"r1", "r1"}, h.backend.draws)
}

func TestDouble_NewRoundResetsDrawGuard(t *testing.T) {
	h := newDoubleHarness(0)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	h.at(31 * time.Second)
	h.d.tick()
	h.settleDraws()

	h.d.handle(NewRoundEvent{Round: models.DoubleRound{ID: "r2", Status: models.RoundBetting, CreatedAt: roundStart.Add(time.Second)}})
	assert.False(t, h.d.State().DrawTriggered)

	h.at(32 * time.Second)
	h.d.tick()
	h.settleDraws()
	assert.Equal(t, []string{"r1", "r2"}, h.backend.draws)
}

func TestDouble_FailedDrawForStaleRoundKeepsGuard(t *testing.T) {
	h := newDoubleHarness(0)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	h.at(31 * time.Second)
	h.d.tick()

	h.d.handle(SpinningEvent{RoundID: "r1", WinningColor: models.ColorRed})
	h.d.handleDrawResult(drawResult{roundID: "r1", err: errors.New("late failure")})

	assert.Equal(t, PhaseSpinning, h.d.Phase())
	h.d.tick()
	h.settleDraws()
	assert.Equal(t, 1, h.backend.drawCount())
}

func completedRound(id string, bets ...models.DoubleBet) models.DoubleRound {
	return models.DoubleRound{
		ID:           id,
		Status:       models.RoundCompleted,
		CreatedAt:    roundStart,
		WinningColor: models.ColorRed,
		Bets:         bets,
	}
}

func TestDouble_CompletionReconcilesBalance(t *testing.T) {
	h := newDoubleHarness(1000)
	ctx := context.Background()
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})

	_, err := h.d.PlaceBet(ctx, 100, models.ColorRed)
	require.NoError(t, err)
	_, err = h.d.PlaceBet(ctx, 50, models.ColorBlack)
	require.NoError(t, err)
	assert.Equal(t, int64(850), h.wallet.Balance(), "bets are debited optimistically")

	h.d.handle(SpinningEvent{RoundID: "r1", WinningColor: models.ColorRed})
	h.d.handle(CompletedEvent{Round: completedRound("r1",
		models.DoubleBet{ID: "b1", UserID: "me", Amount: 100, Color: models.ColorRed, Status: models.BetWon, Winnings: 200},
		models.DoubleBet{ID: "b2", UserID: "me", Amount: 50, Color: models.ColorBlack, Status: models.BetLost},
		models.DoubleBet{ID: "b3", UserID: "someone", Amount: 70, Color: models.ColorRed, Status: models.BetWon, Winnings: 140},
	)})

	assert.Equal(t, int64(1050), h.wallet.Balance(), "pre-round 1000 - wagered 150 + won 200")
	assert.Equal(t, PhaseCompleted, h.d.Phase())
	assert.Equal(t, NotifySuccess, h.notifier.last().Level)
	assert.Equal(t, int64(200), h.notifier.last().Amount)

	h.d.handle(CompletedEvent{Round: completedRound("r1",
		models.DoubleBet{ID: "b1", UserID: "me", Amount: 100, Winnings: 200},
	)})
	assert.Equal(t, int64(1050), h.wallet.Balance(), "completion is processed once per round")
	assert.Len(t, h.d.State().History, 1)
}

func TestDouble_CompletionForBetsPlacedElsewhere(t *testing.T) {
	h := newDoubleHarness(1000)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})

	h.d.handle(CompletedEvent{Round: completedRound("r1",
		models.DoubleBet{ID: "b1", UserID: "me", Amount: 300, Status: models.BetLost},
	)})

	assert.Equal(t, int64(700), h.wallet.Balance())
	assert.NotContains(t, h.notifier.levels(), NotifySuccess)
}

func TestDouble_CompletionWithoutLocalBets(t *testing.T) {
	h := newDoubleHarness(1000)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	h.d.handle(CompletedEvent{Round: completedRound("r1",
		models.DoubleBet{ID: "b1", UserID: "someone", Amount: 300, Winnings: 600},
	)})

	assert.Equal(t, int64(1000), h.wallet.Balance())
	assert.Empty(t, h.wallet.writes)
}

func TestDouble_CompletionBeforeBetResponse(t *testing.T) {
	h := newDoubleHarness(1000)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})

	h.backend.betHook = func() {
		h.d.handle(CompletedEvent{Round: completedRound("r1",
			models.DoubleBet{ID: "b1", UserID: "me", Amount: 100, Status: models.BetLost},
		)})
	}

	_, err := h.d.PlaceBet(context.Background(), 100, models.ColorBlack)
	require.NoError(t, err)
	assert.Equal(t, int64(900), h.wallet.Balance(), "the bet is counted once")
}

func TestDouble_FailedBetRollsBack(t *testing.T) {
	h := newDoubleHarness(1000)
	h.backend.betErr = errors.New("round closed")
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})

	_, err := h.d.PlaceBet(context.Background(), 400, models.ColorRed)
	require.Error(t, err)
	assert.Equal(t, int64(1000), h.wallet.Balance())
	assert.Equal(t, NotifyError, h.notifier.last().Level)

	h.d.handle(CompletedEvent{Round: completedRound("r1")})
	assert.Equal(t, int64(1000), h.wallet.Balance(), "nothing pending to reconcile")
}

func TestDouble_PlaceBetRequiresOpenBetting(t *testing.T) {
	h := newDoubleHarness(1000)
	ctx := context.Background()

	_, err := h.d.PlaceBet(ctx, 100, models.ColorRed)
	assert.ErrorIs(t, err, ErrBettingClosed, "idle")

	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	_, err = h.d.PlaceBet(ctx, 100, models.Color("green"))
	assert.ErrorIs(t, err, ErrInvalidBet)
	_, err = h.d.PlaceBet(ctx, 0, models.ColorRed)
	assert.ErrorIs(t, err, ErrInvalidBet)

	h.at(30 * time.Second)
	_, err = h.d.PlaceBet(ctx, 100, models.ColorRed)
	assert.ErrorIs(t, err, ErrBettingClosed, "countdown expired")

	h.at(0)
	h.d.handle(SpinningEvent{RoundID: "r1", WinningColor: models.ColorRed})
	_, err = h.d.PlaceBet(ctx, 100, models.ColorRed)
	assert.ErrorIs(t, err, ErrBettingClosed, "spinning")

	assert.Equal(t, int64(1000), h.wallet.Balance())
	assert.Empty(t, h.backend.bets)
}

func TestDouble_HistoryIsBoundedNewestFirst(t *testing.T) {
	h := newDoubleHarness(0)
	h.d.handle(CurrentStateEvent{
		Round:   bettingRound("r1"),
		History: []models.DoubleRound{completedRound("h2"), completedRound("h1")},
	})
	require.Len(t, h.d.State().History, 2)

	for _, id := range []string{"r1", "r2", "r3"} {
		h.d.handle(NewRoundEvent{Round: bettingRound(id)})
		h.d.handle(CompletedEvent{Round: completedRound(id)})
	}

	history := h.d.State().History
	require.Len(t, history, 3)
	assert.Equal(t, "r3", history[0].ID)
	assert.Equal(t, "r2", history[1].ID)
	assert.Equal(t, "r1", history[2].ID)

	h.d.handle(CompletedEvent{Round: completedRound("h2")})
	assert.Len(t, h.d.State().History, 3)
}

func TestDouble_StatusNeverRegresses(t *testing.T) {
	h := newDoubleHarness(0)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	h.d.handle(SpinningEvent{RoundID: "r1", WinningColor: models.ColorBlack})

	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	assert.Equal(t, PhaseSpinning, h.d.Phase(), "a stale betting state for the same round is ignored")
}

func TestDouble_BroadcastsState(t *testing.T) {
	h := newDoubleHarness(0)
	h.d.handle(NewRoundEvent{Round: bettingRound("r1")})
	h.d.tick()

	assert.Equal(t, 2, h.hub.count("double_state"))
}

func TestDouble_FetchHistory(t *testing.T) {
	h := newDoubleHarness(0)
	h.backend.history = []models.DoubleRound{completedRound("old")}

	rounds, page, err := h.d.FetchHistory(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
	assert.Equal(t, 1, page.Current)
}

type recordingArchive struct {
	saved chan models.DoubleRound
}

func (a *recordingArchive) SaveRound(ctx context.Context, round models.DoubleRound) error {
	a.saved <- round
	return nil
}

func TestDouble_ArchivesCompletedRounds(t *testing.T) {
	h := newDoubleHarness(0)
	archive := &recordingArchive{saved: make(chan models.DoubleRound, 1)}
	h.d.archive = archive

	h.d.handle(CompletedEvent{Round: completedRound("r1")})

	select {
	case round := <-archive.saved:
		assert.Equal(t, "r1", round.ID)
	case <-time.After(time.Second):
		t.Fatal("round was not archived")
	}
}

func TestDouble_LoopAndTeardown(t *testing.T) {
	backend := &fakeDoubleBackend{}
	wallet := newWallet(500)
	sub := newFakeSub()
	hub := &recordingHub{}
	d := NewDoubleController(backend, wallet, sub, hub, nil, DoubleConfig{
		BettingPeriod: 30 * time.Second,
		TickInterval:  10 * time.Millisecond,
	})
	d.Start()

	created := time.Now().Add(-31 * time.Second).UTC().Format(time.RFC3339Nano)
	sub.ch <- json.RawMessage(`{"type":"new_round","round":{"id":"r1","status":"betting","created_at":"` + created + `","bets":[]}}`)
	sub.ch <- json.RawMessage(`{"type":"bogus"}`)
	sub.ch <- json.RawMessage(`{"type":"new_bet","round_id":"r1","bet":{"id":"b1","user_id":"u2","amount":25,"color":"red"}}`)

	assert.Eventually(t, func() bool { return backend.drawCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		state := d.State()
		return state.Round != nil && len(state.Round.Bets) == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, backend.drawCount(), "still one draw after several ticks")

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, int32(1), sub.closes.Load(), "subscription closed exactly once")

	_, err := d.PlaceBet(context.Background(), 10, models.ColorRed)
	assert.ErrorIs(t, err, ErrControllerClosed)

	before := hub.count("double_state")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, hub.count("double_state"), "no ticks after teardown")
}

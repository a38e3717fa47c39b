package game

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"casinoclient/internal/models"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBettingPeriod = 30 * time.Second
	DefaultHistorySize   = 20
	DefaultTickInterval  = time.Second

	forceDrawTimeout = 10 * time.Second
	archiveTimeout   = 5 * time.Second
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseBetting   Phase = "betting"
	PhaseSpinning  Phase = "spinning"
	PhaseCompleted Phase = "completed"
)

// Subscription is the Double push channel as seen by the controller.
type Subscription interface {
	Messages() <-chan json.RawMessage
	Close() error
}

type DoubleBackend interface {
	PlaceDoubleBet(ctx context.Context, roundID string, amount int64, color models.Color) (models.DoubleBet, error)
	ForceDraw(ctx context.Context, roundID string) error
	DoubleHistory(ctx context.Context, page int) ([]models.DoubleRound, models.Page, error)
}

// RoundArchive stores completed rounds. Optional.
type RoundArchive interface {
	SaveRound(ctx context.Context, round models.DoubleRound) error
}

type DoubleConfig struct {
	BettingPeriod time.Duration
	HistorySize   int
	TickInterval  time.Duration
}

func (c DoubleConfig) withDefaults() DoubleConfig {
	if c.BettingPeriod <= 0 {
		c.BettingPeriod = DefaultBettingPeriod
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	return c
}

type DoubleState struct {
	Phase         Phase                `json:"phase"`
	Round         *models.DoubleRound  `json:"round,omitempty"`
	Countdown     int                  `json:"countdown"`
	Deadline      *time.Time           `json:"deadline,omitempty"`
	History       []models.DoubleRound `json:"history"`
	DrawTriggered bool                 `json:"draw_triggered"`
	BetInFlight   bool                 `json:"bet_in_flight"`
}

type drawResult struct {
	roundID string
	err     error
}

// DoubleController owns the Double round state machine: it applies channel events,
// runs the countdown against the round deadline and forces a draw when the
// countdown expires without a spinning event.
type DoubleController struct {
	backend  DoubleBackend
	account  Account
	sub      Subscription
	hub      Broadcaster
	notifier Notifier
	archive  RoundArchive
	cfg      DoubleConfig
	now      func() time.Time
	dispatch func(func())
	bet      *Action

	ctx         context.Context
	cancel      context.CancelFunc
	drawResults chan drawResult
	done        chan struct{}
	started     atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once

	stateMutex    sync.RWMutex
	phase         Phase
	round         *models.DoubleRound
	deadline      time.Time
	drawTriggered bool
	history       []models.DoubleRound
	pending       map[string]int64
}

type DoubleOption func(*DoubleController)

func WithArchive(archive RoundArchive) DoubleOption {
	return func(d *DoubleController) {
		d.archive = archive
	}
}

func WithClock(now func() time.Time) DoubleOption {
	return func(d *DoubleController) {
		d.now = now
	}
}

func NewDoubleController(backend DoubleBackend, account Account, sub Subscription, hub Broadcaster, notifier Notifier, cfg DoubleConfig, opts ...DoubleOption) *DoubleController {
	ctx, cancel := context.WithCancel(context.Background())
	notifier = notifierOrNop(notifier)

	d := &DoubleController{
		backend:     backend,
		account:     account,
		sub:         sub,
		hub:         hub,
		notifier:    notifier,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
		dispatch:    func(fn func()) { go fn() },
		bet:         NewAction(GameTypeDouble, account, notifier),
		ctx:         ctx,
		cancel:      cancel,
		drawResults: make(chan drawResult, 8),
		done:        make(chan struct{}),
		phase:       PhaseIdle,
		pending:     make(map[string]int64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DoubleController) Type() GameType {
	return GameTypeDouble
}

func (d *DoubleController) Start() {
	if d.closed.Load() || !d.started.CompareAndSwap(false, true) {
		return
	}
	go d.loop()
}

// Close stops the countdown and closes the channel subscription. Safe to call repeatedly.
func (d *DoubleController) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.cancel()
		if d.started.Load() {
			<-d.done
		}
		if d.sub != nil {
			err = d.sub.Close()
		}
		log.WithField("component", "double").Info("Double controller closed")
	})
	return err
}

func (d *DoubleController) loop() {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	logger := log.WithField("component", "double")

	var messages <-chan json.RawMessage
	if d.sub != nil {
		messages = d.sub.Messages()
	}

	for {
		select {
		case <-d.ctx.Done():
			return

		case raw, ok := <-messages:
			if !ok {
				logger.Warn("Double channel closed")
				d.notifier.Notify(Notification{Level: NotifyError, Game: GameTypeDouble, Message: "Lost connection to the Double channel"})
				messages = nil
				continue
			}
			event, err := DecodeEvent(raw)
			if err != nil {
				logger.WithError(err).Warn("Dropping channel message")
				continue
			}
			d.handle(event)

		case <-ticker.C:
			d.tick()

		case res := <-d.drawResults:
			d.handleDrawResult(res)
		}
	}
}

func (d *DoubleController) handle(event Event) {
	switch e := event.(type) {
	case CurrentStateEvent:
		d.seedHistory(e.History)
		d.enterRound(e.Round)
	case NewRoundEvent:
		d.enterRound(e.Round)
	case NewBetEvent:
		d.appendBet(e.RoundID, e.Bet)
	case SpinningEvent:
		d.startSpinning(e.RoundID, e.WinningColor)
	case CompletedEvent:
		d.complete(e.Round)
	default:
		log.WithField("component", "double").Warnf("Unhandled event %T", event)
		return
	}
	d.broadcastState()
}

// enterRound replaces the current round wholesale.
func (d *DoubleController) enterRound(round models.DoubleRound) {
	if round.Status == models.RoundCompleted {
		d.complete(round)
		return
	}

	d.stateMutex.Lock()
	if d.round != nil && d.round.ID == round.ID && round.Status.Rank() < d.round.Status.Rank() {
		d.stateMutex.Unlock()
		return
	}

	for id, amount := range d.pending {
		if id != round.ID {
			log.WithFields(log.Fields{"component": "double", "round_id": id, "amount": amount}).Warn("Dropping unreconciled bets of a missed round")
			delete(d.pending, id)
		}
	}

	r := round.Clone()
	d.round = &r
	d.drawTriggered = false

	switch round.Status {
	case models.RoundSpinning:
		d.phase = PhaseSpinning
		d.deadline = time.Time{}
	default:
		start := round.CreatedAt
		if start.IsZero() {
			start = d.now()
		}
		d.round.Status = models.RoundBetting
		d.phase = PhaseBetting
		d.deadline = start.Add(d.cfg.BettingPeriod)
	}
	countdown := d.countdownLocked()
	d.stateMutex.Unlock()

	log.WithFields(log.Fields{
		"component": "double",
		"round_id":  round.ID,
		"status":    round.Status,
		"countdown": countdown,
	}).Info("Round entered")
}

func (d *DoubleController) seedHistory(history []models.DoubleRound) {
	if len(history) == 0 {
		return
	}
	d.stateMutex.Lock()
	defer d.stateMutex.Unlock()

	n := len(history)
	if n > d.cfg.HistorySize {
		n = d.cfg.HistorySize
	}
	d.history = make([]models.DoubleRound, 0, n)
	for _, r := range history[:n] {
		d.history = append(d.history, r.Clone())
	}
}

func (d *DoubleController) appendBet(roundID string, bet models.DoubleBet) {
	d.stateMutex.Lock()
	defer d.stateMutex.Unlock()

	if d.phase != PhaseBetting || d.round == nil || d.round.ID != roundID {
		return
	}
	d.round.Bets = append(d.round.Bets, bet)
}

// startSpinning stops the countdown regardless of its remaining value.
func (d *DoubleController) startSpinning(roundID string, color models.Color) {
	d.stateMutex.Lock()
	if d.phase != PhaseBetting || d.round == nil || (roundID != "" && d.round.ID != roundID) {
		d.stateMutex.Unlock()
		return
	}
	d.phase = PhaseSpinning
	d.round.Status = models.RoundSpinning
	d.round.WinningColor = color
	d.deadline = time.Time{}
	id := d.round.ID
	d.stateMutex.Unlock()

	log.WithFields(log.Fields{"component": "double", "round_id": id, "color": color}).Info("Round spinning")
}

// complete processes a resolved round at most once and reconciles the local user's bets.
func (d *DoubleController) complete(round models.DoubleRound) {
	d.stateMutex.Lock()
	if d.completedLocked(round.ID) {
		if d.round == nil {
			r := round.Clone()
			d.round = &r
			d.phase = PhaseCompleted
		}
		d.stateMutex.Unlock()
		return
	}

	r := round.Clone()
	r.Status = models.RoundCompleted
	d.round = &r
	d.phase = PhaseCompleted
	d.deadline = time.Time{}

	d.history = append([]models.DoubleRound{r.Clone()}, d.history...)
	if len(d.history) > d.cfg.HistorySize {
		d.history = d.history[:d.cfg.HistorySize]
	}

	userID := d.account.UserID()
	var wagered, won int64
	mine := false
	for _, bet := range r.Bets {
		if userID != "" && bet.UserID == userID {
			mine = true
			wagered += bet.Amount
			won += bet.Winnings
		}
	}
	predebited, hadPending := d.pending[r.ID]
	delete(d.pending, r.ID)
	d.stateMutex.Unlock()

	logger := log.WithFields(log.Fields{"component": "double", "round_id": r.ID, "color": r.WinningColor})
	logger.Info("Round completed")

	if mine || hadPending {
		balance := d.account.Balance()
		d.account.UpdateBalance(balance + predebited - wagered + won)
		logger.WithFields(log.Fields{
			"wagered":    wagered,
			"won":        won,
			"predebited": predebited,
		}).Info("Balance reconciled")
	}
	if won > 0 {
		d.notifier.Notify(winNotification(GameTypeDouble, won))
	}

	if d.archive != nil {
		go d.archiveRound(r)
	}
}

func (d *DoubleController) completedLocked(roundID string) bool {
	for _, r := range d.history {
		if r.ID == roundID {
			return true
		}
	}
	return false
}

func (d *DoubleController) archiveRound(round models.DoubleRound) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := d.archive.SaveRound(ctx, round); err != nil {
		log.WithFields(log.Fields{"component": "double", "round_id": round.ID}).WithError(err).Warn("Failed to archive round")
	}
}

// tick evaluates the countdown and fires the one-shot force draw once it reaches zero.
func (d *DoubleController) tick() {
	d.stateMutex.Lock()
	if d.phase != PhaseBetting || d.round == nil || d.drawTriggered || d.now().Before(d.deadline) {
		d.stateMutex.Unlock()
		d.broadcastState()
		return
	}
	d.drawTriggered = true
	roundID := d.round.ID
	d.stateMutex.Unlock()

	log.WithFields(log.Fields{"component": "double", "round_id": roundID}).Info("Countdown expired, forcing draw")
	d.dispatch(func() { d.forceDraw(roundID) })
	d.broadcastState()
}

func (d *DoubleController) forceDraw(roundID string) {
	ctx, cancel := context.WithTimeout(d.ctx, forceDrawTimeout)
	defer cancel()

	err := d.backend.ForceDraw(ctx, roundID)
	select {
	case d.drawResults <- drawResult{roundID: roundID, err: err}:
	case <-d.ctx.Done():
	}
}

// handleDrawResult re-arms the guard after a failed force draw so a later tick retries.
func (d *DoubleController) handleDrawResult(res drawResult) {
	logger := log.WithFields(log.Fields{"component": "double", "round_id": res.roundID})
	if res.err == nil {
		logger.Debug("Force draw accepted")
		return
	}
	logger.WithError(res.err).Warn("Force draw failed")

	d.stateMutex.Lock()
	if d.phase == PhaseBetting && d.round != nil && d.round.ID == res.roundID {
		d.drawTriggered = false
	}
	d.stateMutex.Unlock()
}

// PlaceBet places a bet on the current round under the optimistic balance protocol.
func (d *DoubleController) PlaceBet(ctx context.Context, amount int64, color models.Color) (models.DoubleBet, error) {
	if d.closed.Load() {
		return models.DoubleBet{}, ErrControllerClosed
	}
	if amount <= 0 || !color.Valid() {
		return models.DoubleBet{}, ErrInvalidBet
	}

	d.stateMutex.RLock()
	open := d.phase == PhaseBetting && d.round != nil && d.now().Before(d.deadline)
	var roundID string
	if d.round != nil {
		roundID = d.round.ID
	}
	d.stateMutex.RUnlock()
	if !open {
		d.notifier.Notify(errorNotification(GameTypeDouble, ErrBettingClosed))
		return models.DoubleBet{}, ErrBettingClosed
	}

	bet, err := Place(ctx, d.bet, amount, func(ctx context.Context) (models.DoubleBet, error) {
		return d.backend.PlaceDoubleBet(ctx, roundID, amount, color)
	}, nil)
	if err != nil {
		return bet, err
	}

	d.stateMutex.Lock()
	alreadyCompleted := d.completedLocked(roundID)
	if !alreadyCompleted {
		d.pending[roundID] += amount
	}
	d.stateMutex.Unlock()

	// The completion for this round already counted the bet as wagered.
	if alreadyCompleted {
		d.account.UpdateBalance(d.account.Balance() + amount)
	}

	log.WithFields(log.Fields{"component": "double", "round_id": roundID, "amount": amount, "color": color}).Info("Bet placed")
	d.broadcastState()
	return bet, nil
}

func (d *DoubleController) FetchHistory(ctx context.Context, page int) ([]models.DoubleRound, models.Page, error) {
	rounds, p, err := d.backend.DoubleHistory(ctx, page)
	if err != nil {
		d.notifier.Notify(errorNotification(GameTypeDouble, err))
		return nil, models.Page{}, err
	}
	return rounds, p, nil
}

// Countdown is the whole seconds left in the betting window, never negative.
func (d *DoubleController) Countdown() int {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	return d.countdownLocked()
}

func (d *DoubleController) countdownLocked() int {
	if d.phase != PhaseBetting || d.deadline.IsZero() {
		return 0
	}
	remaining := d.deadline.Sub(d.now())
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

func (d *DoubleController) Phase() Phase {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	return d.phase
}

func (d *DoubleController) State() DoubleState {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()

	state := DoubleState{
		Phase:         d.phase,
		Countdown:     d.countdownLocked(),
		DrawTriggered: d.drawTriggered,
		BetInFlight:   d.bet.InFlight(),
		History:       make([]models.DoubleRound, 0, len(d.history)),
	}
	if d.round != nil {
		r := d.round.Clone()
		state.Round = &r
	}
	if d.phase == PhaseBetting && !d.deadline.IsZero() {
		deadline := d.deadline
		state.Deadline = &deadline
	}
	for _, r := range d.history {
		state.History = append(state.History, r.Clone())
	}
	return state
}

func (d *DoubleController) Snapshot() interface{} {
	return d.State()
}

func (d *DoubleController) broadcastState() {
	if d.hub == nil || d.closed.Load() {
		return
	}
	d.hub.Broadcast(Message{Type: "double_state", Data: d.State()})
}

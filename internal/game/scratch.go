package game

import (
	"context"
	"fmt"
	"sync"

	"casinoclient/internal/models"

	log "github.com/sirupsen/logrus"
)

type ScratchBackend interface {
	ScratchCards(ctx context.Context) ([]models.ScratchCard, error)
	BuyScratchTicket(ctx context.Context, cardID string) (models.ScratchTicket, error)
	ScratchHistory(ctx context.Context, page int) ([]models.ScratchTicket, models.Page, error)
}

type ScratchState struct {
	Cards    []models.ScratchCard   `json:"cards"`
	Last     *models.ScratchTicket  `json:"last,omitempty"`
	History  []models.ScratchTicket `json:"history"`
	Page     models.Page            `json:"page"`
	InFlight bool                   `json:"in_flight"`
}

type ScratchController struct {
	base
	backend ScratchBackend

	mu      sync.RWMutex
	cards   []models.ScratchCard
	last    *models.ScratchTicket
	history []models.ScratchTicket
	page    models.Page
}

func NewScratchController(backend ScratchBackend, wallet Wallet, notifier Notifier, hub Broadcaster) *ScratchController {
	c := &ScratchController{backend: backend}
	c.init(GameTypeScratch, wallet, notifier, hub)
	return c
}

func (c *ScratchController) Cards(ctx context.Context) ([]models.ScratchCard, error) {
	cards, err := c.backend.ScratchCards(ctx)
	if err != nil {
		return nil, c.fail(err)
	}
	if c.alive() {
		c.mu.Lock()
		c.cards = cards
		c.mu.Unlock()
	}
	return cards, nil
}

// Buy purchases a ticket at the card's listed price; winnings are credited on response.
func (c *ScratchController) Buy(ctx context.Context, cardID string) (models.ScratchTicket, error) {
	card, ok := c.card(cardID)
	if !ok {
		if _, err := c.Cards(ctx); err != nil {
			return models.ScratchTicket{}, err
		}
		if card, ok = c.card(cardID); !ok {
			return models.ScratchTicket{}, c.fail(fmt.Errorf("%w: unknown scratch card %s", ErrInvalidBet, cardID))
		}
	}

	ticket, err := Place(ctx, c.action, card.Price, func(ctx context.Context) (models.ScratchTicket, error) {
		return c.backend.BuyScratchTicket(ctx, card.ID)
	}, func(t models.ScratchTicket) int64 {
		return t.Winnings
	})
	if err != nil || !c.alive() {
		return ticket, err
	}

	c.mu.Lock()
	t := ticket
	c.last = &t
	c.mu.Unlock()

	c.logger().WithFields(log.Fields{"card_id": card.ID, "winnings": ticket.Winnings}).Debug("Ticket bought")
	c.publish(c.State())
	return ticket, nil
}

func (c *ScratchController) History(ctx context.Context, page int) ([]models.ScratchTicket, models.Page, error) {
	tickets, p, err := c.backend.ScratchHistory(ctx, page)
	if err != nil {
		return nil, models.Page{}, c.fail(err)
	}
	if c.alive() {
		c.mu.Lock()
		c.history = tickets
		c.page = p
		c.mu.Unlock()
	}
	return tickets, p, nil
}

func (c *ScratchController) State() ScratchState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := ScratchState{
		Cards:    append([]models.ScratchCard{}, c.cards...),
		History:  append([]models.ScratchTicket{}, c.history...),
		Page:     c.page,
		InFlight: c.InFlight(),
	}
	if c.last != nil {
		t := *c.last
		state.Last = &t
	}
	return state
}

func (c *ScratchController) Snapshot() interface{} {
	return c.State()
}

func (c *ScratchController) card(id string) (models.ScratchCard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, card := range c.cards {
		if card.ID == id {
			return card, true
		}
	}
	return models.ScratchCard{}, false
}

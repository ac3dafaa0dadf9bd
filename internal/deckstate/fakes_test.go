package deckstate

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/cardlookup"
	"github.com/ramonehamilton/commander-builder/internal/cards"
)

type fakeDeck struct {
	name string
	rows []*backend.DeckCard
}

// fakeDecks is an in-memory deck service with additive card quantities.
type fakeDecks struct {
	mu      sync.Mutex
	decks   map[int]*fakeDeck
	order   []int
	nextID  int
	catalog map[string]*cards.Card
	calls   map[string]int

	listErr   error
	createErr error
	fullErr   map[int]error
	addErr    error
	removeErr error
	setErr    error

	// addGate, when set, blocks AddCard until closed; addStarted receives
	// one value per blocked call.
	addGate    chan struct{}
	addStarted chan struct{}

	// afterFullRead runs after GetFullDeck copied its rows and before it
	// returns them.
	afterFullRead func(deckID, call int)
}

func newFakeDecks(catalog ...*cards.Card) *fakeDecks {
	f := &fakeDecks{
		decks:   make(map[int]*fakeDeck),
		nextID:  1,
		catalog: make(map[string]*cards.Card),
		calls:   make(map[string]int),
		fullErr: make(map[int]error),
	}
	for _, c := range catalog {
		f.catalog[c.ID] = c
	}
	return f
}

func (f *fakeDecks) addDeck(name string, rows ...*backend.DeckCard) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.decks[id] = &fakeDeck{name: name, rows: rows}
	f.order = append(f.order, id)
	for _, r := range rows {
		if r.Card != nil {
			f.catalog[r.Card.ID] = r.Card
		}
	}
	return id
}

func (f *fakeDecks) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDecks) setFullErr(deckID int, err error) {
	f.mu.Lock()
	f.fullErr[deckID] = err
	f.mu.Unlock()
}

// total is the service's own card count for a deck.
func (f *fakeDecks) total(deckID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.decks[deckID].rows {
		n += r.Quantity
	}
	return n
}

func rejected(status int, msg string) error {
	return &backend.RejectedError{Status: status, Message: msg}
}

func (f *fakeDecks) ListDecks(ctx context.Context) ([]backend.Deck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []backend.Deck{}
	for _, id := range f.order {
		out = append(out, backend.Deck{ID: id, Name: f.decks[id].name})
	}
	return out, nil
}

func (f *fakeDecks) CreateDeck(ctx context.Context, name string) (*backend.Deck, error) {
	f.mu.Lock()
	f.calls["create"]++
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	id := f.addDeck(name)
	return &backend.Deck{ID: id, Name: name}, nil
}

func (f *fakeDecks) GetFullDeck(ctx context.Context, deckID int) (*backend.FullDeck, error) {
	f.mu.Lock()
	f.calls["full"]++
	call := f.calls["full"]
	if err := f.fullErr[deckID]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	deck, ok := f.decks[deckID]
	if !ok {
		f.mu.Unlock()
		return nil, rejected(http.StatusNotFound, "Deck not found")
	}
	full := &backend.FullDeck{ID: deckID, Name: deck.name, Cards: make([]*backend.DeckCard, 0, len(deck.rows))}
	for _, r := range deck.rows {
		row := *r
		row.Card = r.Card.Clone()
		full.Cards = append(full.Cards, &row)
	}
	hook := f.afterFullRead
	f.mu.Unlock()

	if hook != nil {
		hook(deckID, call)
	}
	return full, nil
}

func (f *fakeDecks) AddCard(ctx context.Context, deckID int, cardID string, quantity int) (*backend.DeckCard, error) {
	f.mu.Lock()
	f.calls["add"]++
	gate, started := f.addGate, f.addStarted
	f.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	deck := f.decks[deckID]
	for _, r := range deck.rows {
		if r.ID() == cardID {
			r.Quantity += quantity
			return r, nil
		}
	}
	card, ok := f.catalog[cardID]
	if !ok {
		return nil, rejected(http.StatusNotFound, fmt.Sprintf("Card %s not found", cardID))
	}
	row := &backend.DeckCard{Card: card, Quantity: quantity}
	deck.rows = append(deck.rows, row)
	return row, nil
}

// RemoveCard decrements every row holding cardID, which also clears a
// commander duplicated in the main deck.
func (f *fakeDecks) RemoveCard(ctx context.Context, deckID int, cardID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["remove"]++
	if f.removeErr != nil {
		return f.removeErr
	}
	deck := f.decks[deckID]
	found := false
	kept := deck.rows[:0]
	for _, r := range deck.rows {
		if r.ID() == cardID {
			found = true
			r.Quantity -= quantity
			if r.Quantity <= 0 {
				continue
			}
		}
		kept = append(kept, r)
	}
	deck.rows = kept
	if !found {
		return rejected(http.StatusNotFound, "Card not in deck")
	}
	return nil
}

func (f *fakeDecks) SetCommander(ctx context.Context, deckID int, cardID string) (*backend.DeckCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["set"]++
	if f.setErr != nil {
		return nil, f.setErr
	}
	var target *backend.DeckCard
	for _, r := range f.decks[deckID].rows {
		r.IsCommander = r.ID() == cardID
		if r.IsCommander {
			target = r
		}
	}
	if target == nil {
		return nil, rejected(http.StatusBadRequest, "Card must be in the deck")
	}
	return target, nil
}

type fakeResolver struct {
	mu    sync.Mutex
	cards map[string]*cards.Card
	err   error
	gate  chan struct{}
}

func newFakeResolver(list ...*cards.Card) *fakeResolver {
	r := &fakeResolver{cards: make(map[string]*cards.Card)}
	for _, c := range list {
		r.cards[c.ID] = c
	}
	return r
}

func (r *fakeResolver) wait(ctx context.Context) error {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fakeResolver) GetByName(ctx context.Context, name string) (*cards.Card, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, c := range r.cards {
		if c.Name == name {
			return c.Clone(), nil
		}
	}
	return nil, &cardlookup.NotFoundError{URL: name}
}

func (r *fakeResolver) GetByID(ctx context.Context, id string) (*cards.Card, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if c, ok := r.cards[id]; ok {
		return c.Clone(), nil
	}
	return nil, &cardlookup.NotFoundError{URL: id}
}

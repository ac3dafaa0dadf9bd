package handlers

import (
	"context"
	"sync"

	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/cardlookup"
	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/deckstate"
)

// mockManager records calls and returns err.
type mockManager struct {
	mu        sync.Mutex
	state     deckstate.State
	err       error
	calls     []string
	added     *cards.Card
	addedName string
	quantity  int
	index     int
	cardID    string
	deckID    int
	cleared   bool
}

func (m *mockManager) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockManager) State() deckstate.State { return m.state.Clone() }

func (m *mockManager) Initialize(_ context.Context, deckID int) error {
	m.deckID = deckID
	return m.record("initialize")
}

func (m *mockManager) AddCard(_ context.Context, card *cards.Card, quantity int) error {
	m.added, m.quantity = card, quantity
	return m.record("add_card")
}

func (m *mockManager) AddCardByName(_ context.Context, name string, quantity int) error {
	m.addedName, m.quantity = name, quantity
	return m.record("add_card_by_name")
}

func (m *mockManager) RemoveEntry(_ context.Context, index int) error {
	m.index = index
	return m.record("remove_entry")
}

func (m *mockManager) RemoveCardByID(_ context.Context, cardID string) error {
	m.cardID = cardID
	return m.record("remove_card")
}

func (m *mockManager) SetCommander(_ context.Context, cardID string) error {
	m.cardID = cardID
	return m.record("set_commander")
}

func (m *mockManager) ClearError() { m.cleared = true }

// mockCards serves cards from a map.
type mockCards struct {
	byID   map[string]*cards.Card
	search *cardlookup.SearchResult
	err    error
	page   int
}

func (m *mockCards) GetByID(_ context.Context, id string) (*cards.Card, error) {
	if m.err != nil {
		return nil, m.err
	}
	card, ok := m.byID[id]
	if !ok {
		return nil, &cardlookup.NotFoundError{URL: "/cards/" + id}
	}
	return card, nil
}

func (m *mockCards) GetByName(_ context.Context, name string) (*cards.Card, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, card := range m.byID {
		if card.Name == name {
			return card, nil
		}
	}
	return nil, &cardlookup.NotFoundError{URL: "/cards/named/" + name}
}

func (m *mockCards) Search(_ context.Context, _ string, page int) (*cardlookup.SearchResult, error) {
	m.page = page
	return m.search, m.err
}

// mockLibrary is an in-memory deck library.
type mockLibrary struct {
	summaries []backend.DeckSummary
	deck      *backend.Deck
	full      *backend.FullDeck
	export    *backend.ExportFile
	err       error

	deletedID    int
	renamed      string
	importFormat backend.ImportFormat
	imported     []byte
}

func (m *mockLibrary) ListDeckSummaries(context.Context) ([]backend.DeckSummary, error) {
	return m.summaries, m.err
}

func (m *mockLibrary) CreateDeck(_ context.Context, name string) (*backend.Deck, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &backend.Deck{ID: 10, Name: name}, nil
}

func (m *mockLibrary) DeleteDeck(_ context.Context, deckID int) error {
	m.deletedID = deckID
	return m.err
}

func (m *mockLibrary) RenameDeck(_ context.Context, deckID int, name string) (*backend.Deck, error) {
	m.renamed = name
	if m.err != nil {
		return nil, m.err
	}
	return &backend.Deck{ID: deckID, Name: name}, nil
}

func (m *mockLibrary) CopyDeck(_ context.Context, deckID int, name string) (*backend.Deck, error) {
	if m.err != nil {
		return nil, m.err
	}
	if name == "" {
		name = "Copy"
	}
	return &backend.Deck{ID: deckID + 100, Name: name}, nil
}

func (m *mockLibrary) ExportDeck(context.Context, int, backend.ExportFormat) (*backend.ExportFile, error) {
	return m.export, m.err
}

func (m *mockLibrary) ImportDeck(_ context.Context, format backend.ImportFormat, name string, content []byte) (*backend.FullDeck, error) {
	m.importFormat, m.imported = format, content
	if m.err != nil {
		return nil, m.err
	}
	return &backend.FullDeck{ID: 42, Name: name}, nil
}

// mockMeta returns fixed meta data.
type mockMeta struct {
	top        []*cards.Card
	categories []string
	byCategory map[string][]*cards.Card
	err        error
}

func (m *mockMeta) TopCommanders(context.Context) ([]*cards.Card, error) {
	return m.top, m.err
}

func (m *mockMeta) AvailableCategories(context.Context, string) ([]string, error) {
	return m.categories, m.err
}

func (m *mockMeta) CardsByCategory(_ context.Context, _, category string) ([]*cards.Card, error) {
	return m.byCategory[category], m.err
}

func (m *mockMeta) AllMetaCards(context.Context, string) (map[string][]*cards.Card, error) {
	return m.byCategory, m.err
}

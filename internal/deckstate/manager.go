// Package deckstate keeps one Commander deck in sync with the deck service.
//
// Manager is the single owner of the deck being edited. Mutations are
// applied optimistically or after remote confirmation and are then
// reconciled by re-fetching the whole deck. Every full re-fetch carries a
// sequence number; a response is applied only when it is the newest one and
// its deck is still the active deck, so late responses never overwrite
// fresher state.
package deckstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/events"
	"github.com/ramonehamilton/commander-builder/internal/metrics"
)

// DefaultDeckName names the deck created when the client has none.
const DefaultDeckName = "New Deck"

// DeckService is the subset of the deck service the manager uses.
type DeckService interface {
	ListDecks(ctx context.Context) ([]backend.Deck, error)
	CreateDeck(ctx context.Context, name string) (*backend.Deck, error)
	GetFullDeck(ctx context.Context, deckID int) (*backend.FullDeck, error)
	AddCard(ctx context.Context, deckID int, cardID string, quantity int) (*backend.DeckCard, error)
	RemoveCard(ctx context.Context, deckID int, cardID string, quantity int) error
	SetCommander(ctx context.Context, deckID int, cardID string) (*backend.DeckCard, error)
}

// CardResolver looks cards up by name or id.
type CardResolver interface {
	GetByName(ctx context.Context, name string) (*cards.Card, error)
	GetByID(ctx context.Context, id string) (*cards.Card, error)
}

// Options configures a Manager.
type Options struct {
	Dispatcher      *events.EventDispatcher
	Metrics         *metrics.RemoteMetrics
	Logger          *zap.Logger
	DefaultDeckName string
}

// Manager owns one deck's state. It is safe for concurrent use.
type Manager struct {
	decks      DeckService
	cards      CardResolver
	dispatcher *events.EventDispatcher
	metrics    *metrics.RemoteMetrics
	logger     *zap.Logger
	newDeck    string

	mu    sync.Mutex
	state State
	// active is the deck the user navigated to; it may be ahead of
	// state.DeckID while that deck loads.
	active     int
	navigation uint64
	issued     uint64
	applied    uint64
	refreshing int
	loads      int
	inFlight   map[string]struct{}
	subs       uint64

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// NewManager creates a manager with an empty state. Call Initialize to load
// a deck and Close to stop background card resolution.
func NewManager(decks DeckService, resolver CardResolver, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewEventDispatcher(logger)
	}
	name := strings.TrimSpace(opts.DefaultDeckName)
	if name == "" {
		name = DefaultDeckName
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		decks:      decks,
		cards:      resolver,
		dispatcher: dispatcher,
		metrics:    opts.Metrics,
		logger:     logger,
		newDeck:    name,
		state:      State{Entries: []Entry{}},
		inFlight:   make(map[string]struct{}),
		bgCtx:      ctx,
		bgCancel:   cancel,
	}
}

// Close cancels background card resolution and waits for it to stop.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.bgCancel()
	m.mu.Unlock()
	m.bg.Wait()
	return nil
}

// Dispatcher returns the dispatcher state events are published on.
func (m *Manager) Dispatcher() *events.EventDispatcher {
	return m.dispatcher
}

// State returns a deep copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// TotalCards returns the live card count including the commander.
func (m *Manager) TotalCards() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.TotalCards()
}

// ClearError dismisses LastError.
func (m *Manager) ClearError() {
	m.mu.Lock()
	if m.state.LastError == "" {
		m.mu.Unlock()
		return
	}
	m.state.LastError = ""
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

// Subscribe calls fn with every committed state snapshot until the returned
// function is called. fn runs on the goroutine that made the change.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	m.subs++
	name := fmt.Sprintf("deckstate-subscriber-%d", m.subs)
	m.mu.Unlock()

	observer := events.NewFuncObserver(name, func(e events.Event) {
		if s, ok := events.GetTypedData[State](e); ok {
			fn(s)
		}
	}, events.TypeDeckState)
	m.dispatcher.Register(observer)

	var once sync.Once
	return func() { once.Do(func() { m.dispatcher.Unregister(observer) }) }
}

// Initialize loads deckID. With deckID <= 0 it loads the first deck the
// service lists, creating one when there are none. Previously loaded data
// is kept when the load fails.
func (m *Manager) Initialize(ctx context.Context, deckID int) error {
	m.mu.Lock()
	m.navigation++
	nav := m.navigation
	m.state.LastError = ""
	if deckID > 0 {
		m.active = deckID
	}
	m.loads++
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	defer m.endLoad()

	if deckID <= 0 {
		picked, err := m.pickDeck(ctx)
		if err != nil {
			m.failNavigation(nav, "initialize", 0, err)
			return err
		}
		m.mu.Lock()
		if m.navigation != nav {
			m.mu.Unlock()
			return nil
		}
		m.active = picked
		m.mu.Unlock()
		deckID = picked
	}

	if err := m.refresh(ctx, deckID); err != nil {
		err = fmt.Errorf("failed to load deck %d: %w", deckID, err)
		m.failNavigation(nav, "initialize", deckID, err)
		return err
	}
	return nil
}

func (m *Manager) pickDeck(ctx context.Context) (int, error) {
	decks, err := m.decks.ListDecks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list decks: %w", err)
	}
	if len(decks) > 0 {
		return decks[0].ID, nil
	}

	created, err := m.decks.CreateDeck(ctx, m.newDeck)
	if err != nil {
		return 0, fmt.Errorf("failed to create deck: %w", err)
	}
	m.logger.Info("Created deck", zap.Int("deck_id", created.ID), zap.String("name", created.Name))
	return created.ID, nil
}

// failNavigation records a failed Initialize. Unless a newer navigation
// started, the active deck falls back to the one still on display.
func (m *Manager) failNavigation(nav uint64, op string, deckID int, err error) {
	m.mu.Lock()
	if m.navigation != nav {
		m.mu.Unlock()
		return
	}
	m.active = m.state.DeckID
	m.state.LastError = displayMessage(err)
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Warn("Deck load failed", zap.Int("deck_id", deckID), zap.Error(err))
	m.publish(snap)
	m.publishError(op, deckID, err)
}

func (m *Manager) endLoad() {
	m.mu.Lock()
	m.loads--
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

// reload is a refresh that shows Loading while it runs.
func (m *Manager) reload(ctx context.Context, deckID int) error {
	m.mu.Lock()
	m.loads++
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	defer m.endLoad()
	return m.refresh(ctx, deckID)
}

// refresh fetches deckID and replaces commander and entries with the
// service's data, unless a newer refresh has already been applied or the
// user navigated to another deck.
func (m *Manager) refresh(ctx context.Context, deckID int) error {
	m.mu.Lock()
	m.issued++
	seq := m.issued
	m.refreshing++
	m.mu.Unlock()

	full, err := m.decks.GetFullDeck(ctx, deckID)
	if err != nil {
		m.mu.Lock()
		m.refreshing--
		m.mu.Unlock()
		return err
	}
	commander, entries := partition(full, m.logger)

	m.mu.Lock()
	m.refreshing--
	if seq <= m.applied || deckID != m.active {
		m.mu.Unlock()
		m.metrics.RecordStaleDiscard()
		m.logger.Debug("Discarded stale deck response",
			zap.Int("deck_id", deckID), zap.Uint64("seq", seq))
		return nil
	}
	m.applied = seq
	m.state.DeckID = deckID
	m.state.DeckName = full.Name
	m.state.Commander = commander
	m.state.Entries = entries
	m.commitLocked()
	pending := m.pendingLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap)
	m.resolve(deckID, seq, pending)
	return nil
}

// silentRefresh reconciles after a mutation. Its failure leaves the local
// state in place and is only logged.
func (m *Manager) silentRefresh(ctx context.Context, deckID int) {
	if err := m.refresh(ctx, deckID); err != nil {
		m.logger.Warn("Deck refresh failed", zap.Int("deck_id", deckID), zap.Error(err))
	}
}

// partition splits service rows into the commander and main entries. Only
// the first row flagged as commander fills the slot; repeated card ids in the
// main entries are merged.
func partition(full *backend.FullDeck, logger *zap.Logger) (*Entry, []Entry) {
	var commander *Entry
	entries := make([]Entry, 0, len(full.Cards))
	index := make(map[string]int, len(full.Cards))

	for _, row := range full.Cards {
		if row == nil || row.Quantity < 1 {
			continue
		}
		entry := entryFromRow(row)

		if row.IsCommander {
			if commander == nil {
				commander = &entry
				continue
			}
			logger.Warn("Deck has more than one commander",
				zap.Int("deck_id", full.ID), zap.String("card_id", entry.ID()))
		}

		id := entry.ID()
		if i, ok := index[id]; ok && id != "" {
			entries[i].Quantity += entry.Quantity
			continue
		}
		if id != "" {
			index[id] = len(entries)
		}
		entries = append(entries, entry)
	}
	return commander, entries
}

func entryFromRow(row *backend.DeckCard) Entry {
	entry := Entry{CardID: row.ID(), Quantity: row.Quantity}
	if row.Card != nil && row.Card.ID != "" {
		entry.Card = row.Card.Clone()
		entry.CardName = row.Card.Name
		return entry
	}
	if row.Card != nil {
		entry.CardName = row.Card.Name
	}
	entry.Resolving = entry.CardID != "" || entry.CardName != ""
	if !entry.Resolving {
		entry.ResolutionError = "card data missing"
	}
	return entry
}

// AddCard adds quantity copies of card, showing them immediately and
// reconciling with the service afterwards. A call for a card that is
// already being added returns nil without doing anything.
func (m *Manager) AddCard(ctx context.Context, card *cards.Card, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	m.mu.Lock()
	deckID := m.currentDeckLocked()
	if deckID == 0 {
		return m.rejectLocked("add_card", ErrNoDeckSelected)
	}
	if card == nil || card.ID == "" {
		return m.rejectLocked("add_card", ErrInvalidCard)
	}
	if _, busy := m.inFlight[card.ID]; busy {
		m.mu.Unlock()
		m.logger.Debug("Add already in flight", zap.String("card_id", card.ID))
		return nil
	}
	m.inFlight[card.ID] = struct{}{}
	defer m.release(card.ID)

	m.addLocked(card, quantity)
	patchedAt := m.issued
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	if _, err := m.decks.AddCard(ctx, deckID, card.ID, quantity); err != nil {
		err = fmt.Errorf("failed to add %s: %w", cardLabel(card), err)
		m.undoAdd(deckID, card.ID, quantity, patchedAt)
		if rerr := m.reload(ctx, deckID); rerr != nil {
			m.logger.Warn("Rollback reload failed", zap.Int("deck_id", deckID), zap.Error(rerr))
		}
		m.recordError("add_card", deckID, err)
		return err
	}

	m.silentRefresh(ctx, deckID)
	return nil
}

func (m *Manager) release(cardID string) {
	m.mu.Lock()
	delete(m.inFlight, cardID)
	m.mu.Unlock()
}

func (m *Manager) addLocked(card *cards.Card, quantity int) {
	if m.state.IsCommander(card.ID) {
		m.state.Commander.Quantity += quantity
		return
	}
	if i := m.state.EntryByID(card.ID); i >= 0 {
		e := &m.state.Entries[i]
		e.Quantity += quantity
		e.Card = card.Clone()
		e.CardID = card.ID
		e.CardName = card.Name
		e.Resolving = false
		e.ResolutionError = ""
		return
	}
	m.state.Entries = append(m.state.Entries, Entry{
		CardID:   card.ID,
		CardName: card.Name,
		Quantity: quantity,
		Card:     card.Clone(),
	})
}

// undoAdd reverts an optimistic add when no refresh has been issued since
// the patch; otherwise the pending reload replaces it.
func (m *Manager) undoAdd(deckID int, cardID string, quantity int, patchedAt uint64) {
	m.mu.Lock()
	if m.issued != patchedAt || m.currentDeckLocked() != deckID {
		m.mu.Unlock()
		return
	}
	if m.state.IsCommander(cardID) {
		if m.state.Commander.Quantity > quantity {
			m.state.Commander.Quantity -= quantity
		}
	} else {
		m.decrementLocked(cardID, quantity)
	}
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

// AddCardByName resolves name with the card lookup and adds the card.
func (m *Manager) AddCardByName(ctx context.Context, name string, quantity int) error {
	m.mu.Lock()
	deckID := m.currentDeckLocked()
	if deckID == 0 {
		return m.rejectLocked("add_card", ErrNoDeckSelected)
	}
	m.mu.Unlock()

	card, err := m.cards.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		err = fmt.Errorf("failed to find card %q: %w", name, err)
		m.recordError("add_card", deckID, err)
		return err
	}
	return m.AddCard(ctx, card, quantity)
}

// RemoveEntry removes one copy of the entry at index once the service has
// confirmed the removal.
func (m *Manager) RemoveEntry(ctx context.Context, index int) error {
	m.mu.Lock()
	deckID := m.currentDeckLocked()
	if deckID == 0 {
		return m.rejectLocked("remove_card", ErrNoDeckSelected)
	}
	if index < 0 || index >= len(m.state.Entries) {
		return m.rejectLocked("remove_card", fmt.Errorf("%w: %d", ErrInvalidIndex, index))
	}
	entry := m.state.Entries[index]
	if !entry.Resolved() {
		return m.rejectLocked("remove_card", fmt.Errorf("%w: %s", ErrCardNotResolved, entryLabel(&entry)))
	}
	cardID := entry.Card.ID
	issued := m.issued
	// A refresh already running may have read the deck before the removal.
	overlapping := m.refreshing > 0
	m.mu.Unlock()

	if err := m.decks.RemoveCard(ctx, deckID, cardID, 1); err != nil {
		err = fmt.Errorf("failed to remove %s: %w", entryLabel(&entry), err)
		m.recordError("remove_card", deckID, err)
		return err
	}

	m.mu.Lock()
	if m.currentDeckLocked() != deckID {
		m.mu.Unlock()
		return nil
	}
	if overlapping || m.issued != issued {
		// A refresh overlapped the removal and may or may not include it.
		m.mu.Unlock()
		m.silentRefresh(ctx, deckID)
		return nil
	}
	m.decrementLocked(cardID, 1)
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
	return nil
}

// RemoveCardByID removes one copy of cardID from the commander slot or the
// main entries, then re-fetches the deck.
func (m *Manager) RemoveCardByID(ctx context.Context, cardID string) error {
	m.mu.Lock()
	deckID := m.currentDeckLocked()
	if deckID == 0 {
		return m.rejectLocked("remove_card", ErrNoDeckSelected)
	}
	if cardID == "" {
		return m.rejectLocked("remove_card", ErrInvalidCard)
	}

	isCommander := m.state.IsCommander(cardID)
	label := cardID
	if isCommander {
		label = entryLabel(m.state.Commander)
	} else {
		i := m.state.EntryByID(cardID)
		if i < 0 {
			return m.rejectLocked("remove_card", fmt.Errorf("%w: %s", ErrCardNotInDeck, cardID))
		}
		entry := &m.state.Entries[i]
		if !entry.Resolved() {
			return m.rejectLocked("remove_card", fmt.Errorf("%w: %s", ErrCardNotResolved, entryLabel(entry)))
		}
		label = entryLabel(entry)
	}
	m.mu.Unlock()

	err := m.decks.RemoveCard(ctx, deckID, cardID, 1)
	if err != nil {
		err = fmt.Errorf("failed to remove %s: %w", label, err)
		m.recordError("remove_card", deckID, err)
	} else {
		m.mu.Lock()
		if m.currentDeckLocked() == deckID {
			if isCommander && m.state.IsCommander(cardID) {
				m.state.Commander = nil
				m.dropLocked(cardID)
			} else {
				m.decrementLocked(cardID, 1)
			}
			m.commitLocked()
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.publish(snap)
		} else {
			m.mu.Unlock()
		}
	}

	m.silentRefresh(ctx, deckID)
	return err
}

// SetCommander makes cardID the commander, adding one copy first when the
// deck does not hold it. The deck is re-fetched afterwards whether or not
// the service calls succeeded.
func (m *Manager) SetCommander(ctx context.Context, cardID string) error {
	m.mu.Lock()
	deckID := m.currentDeckLocked()
	if deckID == 0 {
		return m.rejectLocked("set_commander", ErrNoDeckSelected)
	}
	if cardID == "" {
		return m.rejectLocked("set_commander", ErrInvalidCard)
	}
	if m.state.IsCommander(cardID) {
		m.mu.Unlock()
		return nil
	}
	held := m.state.EntryByID(cardID) >= 0
	m.mu.Unlock()

	var err error
	if !held {
		if _, addErr := m.decks.AddCard(ctx, deckID, cardID, 1); addErr != nil {
			err = fmt.Errorf("failed to add commander %s: %w", cardID, addErr)
		}
	}
	if err == nil {
		if _, setErr := m.decks.SetCommander(ctx, deckID, cardID); setErr != nil {
			err = fmt.Errorf("failed to set commander %s: %w", cardID, setErr)
		}
	}
	if err != nil {
		m.recordError("set_commander", deckID, err)
	}

	m.silentRefresh(ctx, deckID)
	return err
}

// currentDeckLocked returns the deck mutations apply to, or 0 while none is
// loaded or a navigation to another deck is pending.
func (m *Manager) currentDeckLocked() int {
	if m.state.DeckID == 0 || m.state.DeckID != m.active {
		return 0
	}
	return m.state.DeckID
}

func (m *Manager) decrementLocked(cardID string, quantity int) {
	i := m.state.EntryByID(cardID)
	if i < 0 {
		return
	}
	if m.state.Entries[i].Quantity > quantity {
		m.state.Entries[i].Quantity -= quantity
		return
	}
	m.state.Entries = append(m.state.Entries[:i], m.state.Entries[i+1:]...)
}

func (m *Manager) dropLocked(cardID string) {
	kept := m.state.Entries[:0]
	for _, e := range m.state.Entries {
		if e.ID() != cardID {
			kept = append(kept, e)
		}
	}
	m.state.Entries = kept
}

// rejectLocked records a precondition failure and unlocks m.mu.
func (m *Manager) rejectLocked(op string, err error) error {
	m.state.LastError = err.Error()
	deckID := m.state.DeckID
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap)
	m.publishError(op, deckID, err)
	return err
}

// recordError stores err as LastError if deckID is still the active deck.
func (m *Manager) recordError(op string, deckID int, err error) {
	m.logger.Warn("Deck operation failed",
		zap.String("op", op), zap.Int("deck_id", deckID), zap.Error(err))

	m.mu.Lock()
	if m.active != deckID {
		m.mu.Unlock()
		return
	}
	m.state.LastError = displayMessage(err)
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap)
	m.publishError(op, deckID, err)
}

// displayMessage prefers the service's own wording for rejections.
func displayMessage(err error) string {
	var rejected *backend.RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	return err.Error()
}

func (m *Manager) commitLocked() {
	m.state.Version++
}

func (m *Manager) snapshotLocked() State {
	snap := m.state.Clone()
	snap.Loading = m.loads > 0
	return snap
}

func (m *Manager) publish(snap State) {
	m.dispatcher.Dispatch(events.NewTypedEvent(context.Background(), events.TypeDeckState, snap))
}

func (m *Manager) publishError(op string, deckID int, err error) {
	m.dispatcher.Dispatch(events.NewTypedEvent(context.Background(), events.TypeDeckError, events.DeckErrorEvent{
		DeckID:    deckID,
		Operation: op,
		Error:     displayMessage(err),
	}))
}

func cardLabel(card *cards.Card) string {
	if card.Name != "" {
		return card.Name
	}
	return card.ID
}

func entryLabel(e *Entry) string {
	if e.CardName != "" {
		return e.CardName
	}
	return e.ID()
}

package deckstate

import (
	"context"

	"go.uber.org/zap"

	"github.com/ramonehamilton/commander-builder/internal/cards"
)

type pendingCard struct {
	cardID    string
	name      string
	commander bool
}

func (m *Manager) pendingLocked() []pendingCard {
	var pending []pendingCard
	if c := m.state.Commander; c != nil && c.Resolving {
		pending = append(pending, pendingCard{cardID: c.CardID, name: c.CardName, commander: true})
	}
	for i := range m.state.Entries {
		if e := &m.state.Entries[i]; e.Resolving {
			pending = append(pending, pendingCard{cardID: e.CardID, name: e.CardName})
		}
	}
	return pending
}

// resolve fetches card data for rows the service returned without it. The
// lookups run in the background one at a time and are applied only while
// the state still comes from load seq.
func (m *Manager) resolve(deckID int, seq uint64, pending []pendingCard) {
	if len(pending) == 0 {
		return
	}

	m.mu.Lock()
	if m.bgCtx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.bg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.bg.Done()
		for _, p := range pending {
			card, err := m.lookup(m.bgCtx, p)
			if m.bgCtx.Err() != nil {
				return
			}
			if err != nil {
				m.logger.Debug("Card resolution failed",
					zap.String("card_id", p.cardID), zap.String("name", p.name), zap.Error(err))
			}
			if !m.applyResolution(deckID, seq, p, card, err) {
				return
			}
		}
	}()
}

func (m *Manager) lookup(ctx context.Context, p pendingCard) (*cards.Card, error) {
	if m.cards == nil {
		return nil, errLookupUnavailable
	}
	if p.cardID != "" {
		return m.cards.GetByID(ctx, p.cardID)
	}
	return m.cards.GetByName(ctx, p.name)
}

// applyResolution patches one pending entry. It returns false once the
// state no longer comes from load seq, which ends the resolution pass.
func (m *Manager) applyResolution(deckID int, seq uint64, p pendingCard, card *cards.Card, err error) bool {
	m.mu.Lock()
	if m.applied != seq || m.state.DeckID != deckID {
		m.mu.Unlock()
		return false
	}

	var target *Entry
	index := -1
	if p.commander {
		target = m.state.Commander
	} else {
		for i := range m.state.Entries {
			e := &m.state.Entries[i]
			if e.Resolving && e.CardID == p.cardID && e.CardName == p.name {
				target, index = e, i
				break
			}
		}
	}
	if target == nil || !target.Resolving {
		m.mu.Unlock()
		return true
	}

	target.Resolving = false
	if err != nil {
		target.ResolutionError = err.Error()
	} else {
		target.Card = card.Clone()
		target.CardID = card.ID
		target.CardName = card.Name
		target.ResolutionError = ""
		if index >= 0 {
			m.mergeResolvedLocked(index)
		}
	}
	m.commitLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snap)
	return true
}

// mergeResolvedLocked folds the entry at index into an earlier entry that
// turned out to hold the same card.
func (m *Manager) mergeResolvedLocked(index int) {
	id := m.state.Entries[index].ID()
	for i := range m.state.Entries {
		if i != index && m.state.Entries[i].ID() == id {
			m.state.Entries[i].Quantity += m.state.Entries[index].Quantity
			m.state.Entries = append(m.state.Entries[:index], m.state.Entries[index+1:]...)
			return
		}
	}
}

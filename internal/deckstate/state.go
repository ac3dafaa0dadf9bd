package deckstate

import (
	"github.com/ramonehamilton/commander-builder/internal/cards"
)

// Entry is one distinct card in a deck and how many copies it holds.
// CardName is authoritative until Card resolves; after that Card.ID is the
// de-duplication key.
type Entry struct {
	CardID          string      `json:"card_id,omitempty"`
	CardName        string      `json:"card_name"`
	Quantity        int         `json:"quantity"`
	Card            *cards.Card `json:"card,omitempty"`
	Resolving       bool        `json:"resolving"`
	ResolutionError string      `json:"resolution_error,omitempty"`
}

// ID returns the resolved card id, falling back to CardID.
func (e *Entry) ID() string {
	if e.Card != nil && e.Card.ID != "" {
		return e.Card.ID
	}
	return e.CardID
}

// Resolved reports whether the entry has confirmed card data.
func (e *Entry) Resolved() bool {
	return e.Card != nil && e.Card.ID != "" && !e.Resolving && e.ResolutionError == ""
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Card = e.Card.Clone()
	return &c
}

// State is a snapshot of the managed deck.
type State struct {
	DeckID    int     `json:"deck_id"`
	DeckName  string  `json:"deck_name"`
	Commander *Entry  `json:"commander,omitempty"`
	Entries   []Entry `json:"entries"`
	Loading   bool    `json:"loading"`
	LastError string  `json:"last_error,omitempty"`

	// Version increases with every committed change so consumers can drop
	// snapshots that arrive out of order.
	Version uint64 `json:"version"`
}

// TotalCards is the sum of entry quantities plus the commander's quantity.
func (s State) TotalCards() int {
	total := 0
	for i := range s.Entries {
		total += s.Entries[i].Quantity
	}
	if s.Commander != nil {
		total += s.Commander.Quantity
	}
	return total
}

// EntryByID returns the index of the entry holding cardID, or -1.
func (s State) EntryByID(cardID string) int {
	for i := range s.Entries {
		if s.Entries[i].ID() == cardID {
			return i
		}
	}
	return -1
}

// IsCommander reports whether cardID is the commander.
func (s State) IsCommander(cardID string) bool {
	return s.Commander != nil && cardID != "" && s.Commander.ID() == cardID
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	c := *s
	c.Commander = s.Commander.clone()
	c.Entries = make([]Entry, len(s.Entries))
	for i := range s.Entries {
		c.Entries[i] = *s.Entries[i].clone()
	}
	return c
}

// Package backend is the HTTP client for the deck persistence service.
package backend

import (
	"github.com/ramonehamilton/commander-builder/internal/cards"
)

// Deck is a deck summary as listed by the backend.
type Deck struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	LastUpdate string `json:"last_update"`
}

// DeckCard is one card row of a deck. The backend stores the commander as a
// row flagged IsCommander.
type DeckCard struct {
	Card        *cards.Card `json:"card"`
	CardID      string      `json:"card_id,omitempty"`
	Quantity    int         `json:"quantity"`
	IsCommander bool        `json:"is_commander"`
}

// ID returns the row's card id, preferring the embedded card.
func (dc *DeckCard) ID() string {
	if dc.Card != nil && dc.Card.ID != "" {
		return dc.Card.ID
	}
	return dc.CardID
}

// FullDeck is a deck with all of its card rows.
type FullDeck struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	LastUpdate string      `json:"last_update"`
	Cards      []*DeckCard `json:"cards"`
}

// Summary returns the deck without its cards.
func (d *FullDeck) Summary() Deck {
	return Deck{ID: d.ID, Name: d.Name, LastUpdate: d.LastUpdate}
}

// ExportFormat is a backend export format.
type ExportFormat string

const (
	ExportTxt  ExportFormat = "txt"
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// Valid reports whether f is a supported export format.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportTxt, ExportCSV, ExportJSON:
		return true
	}
	return false
}

// ImportFormat is a backend import format.
type ImportFormat string

const (
	ImportTxt ImportFormat = "txt"
	ImportCSV ImportFormat = "csv"
)

// Valid reports whether f is a supported import format.
func (f ImportFormat) Valid() bool {
	return f == ImportTxt || f == ImportCSV
}

// ExportFile is an exported deck as returned by the backend.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type deckListResponse struct {
	Decks []Deck `json:"decks"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type addCardRequest struct {
	CardID   string `json:"card_id"`
	Quantity int    `json:"quantity"`
}

type setCommanderRequest struct {
	CardID string `json:"card_id"`
}

type errorResponse struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
}

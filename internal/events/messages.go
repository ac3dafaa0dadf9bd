package events

// Event types emitted by the deck state manager and the deck list handlers.
const (
	TypeDeckState    = "deck:state"    // Payload: deckstate.State snapshot
	TypeDeckError    = "deck:error"    // Payload: DeckErrorEvent
	TypeDecksUpdated = "decks:updated" // Payload: DecksUpdatedEvent
)

// DeckErrorEvent is the payload for deck:error events.
// Sent when a deck operation fails and LastError changes.
type DeckErrorEvent struct {
	DeckID    int    `json:"deckId"`
	Operation string `json:"operation"` // e.g. "add_card", "set_commander"
	Error     string `json:"error"`
}

// DecksUpdatedEvent is the payload for decks:updated events.
// Sent when a deck is created, renamed, copied, imported or deleted.
type DecksUpdatedEvent struct {
	Action string `json:"action"` // "created", "renamed", "copied", "imported", "deleted"
	DeckID int    `json:"deckId"`
	Name   string `json:"name,omitempty"`
}

package deckstate

import "errors"

var (
	// ErrNoDeckSelected is returned by mutations before a deck is loaded.
	ErrNoDeckSelected = errors.New("no deck selected")

	// ErrInvalidCard is returned for a nil card or one without an id.
	ErrInvalidCard = errors.New("invalid card: missing id")

	// ErrInvalidIndex is returned when an entry index is out of range.
	ErrInvalidIndex = errors.New("invalid entry index")

	// ErrCardNotResolved is returned when removing an entry whose card data
	// is still loading or failed to load.
	ErrCardNotResolved = errors.New("card not resolved")

	// ErrCardNotInDeck is returned when removing a card id the deck does not
	// hold.
	ErrCardNotInDeck = errors.New("card not in deck")
)

var errLookupUnavailable = errors.New("card lookup unavailable")

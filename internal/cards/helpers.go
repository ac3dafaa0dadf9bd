package cards

import (
	"slices"
	"strings"
)

// basicLandNames lists the five basic land names.
var basicLandNames = []string{"Plains", "Island", "Swamp", "Mountain", "Forest"}

// IsCompatibleWithCommander reports whether card may be played under
// commander. A card is compatible when its color identity is a subset of the
// commander's. Colorless cards are always compatible, and a missing card or
// commander is treated as compatible.
func IsCompatibleWithCommander(card, commander *Card) bool {
	if card == nil || commander == nil {
		return true
	}

	if len(card.ColorIdentity) == 0 {
		return true
	}

	for _, color := range card.ColorIdentity {
		if !slices.Contains(commander.ColorIdentity, color) {
			return false
		}
	}
	return true
}

// IsBasicLand reports whether the card is one of the basic lands, by name or
// by type line.
func IsBasicLand(card *Card) bool {
	if card == nil {
		return false
	}
	if slices.Contains(basicLandNames, card.Name) {
		return true
	}
	return strings.Contains(strings.ToLower(card.TypeLine), "basic land")
}

// IsLand reports whether the card's type line contains "land".
func IsLand(card *Card) bool {
	if card == nil {
		return false
	}
	return strings.Contains(strings.ToLower(card.TypeLine), "land")
}

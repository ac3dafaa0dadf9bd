package cards

import "regexp"

// nonEnglishPattern matches characters that never appear in English card
// names but are common in localized printings.
var nonEnglishPattern = regexp.MustCompile(`(?i)[àáâãäåèéêëìíîïòóôõöùúûüçñß¿¡]`)

// IsEnglishName reports whether a card name looks like an English printing.
func IsEnglishName(name string) bool {
	return !nonEnglishPattern.MatchString(name)
}

// FilterEnglish returns the cards whose names look English, preserving order.
func FilterEnglish(cards []*Card) []*Card {
	filtered := make([]*Card, 0, len(cards))
	for _, card := range cards {
		if card == nil || !IsEnglishName(card.Name) {
			continue
		}
		filtered = append(filtered, card)
	}
	return filtered
}

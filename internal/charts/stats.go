package charts

import (
	"strconv"
	"strings"

	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/deckstate"
)

// maxCurveBucket collects every mana value at or above it.
const maxCurveBucket = 7

// DeckStats summarises a deck for charting.
type DeckStats struct {
	DeckName         string      `json:"deck_name"`
	TotalCards       int         `json:"total_cards"`
	Unresolved       int         `json:"unresolved"` // Copies without card data, not charted
	AverageManaValue float64     `json:"average_mana_value"`
	ManaCurve        []DataPoint `json:"mana_curve"` // Nonland cards per mana value, "0" to "7+"
	Colors           []DataPoint `json:"colors"`     // Copies per color identity, multicolor counted once per color
	Types            []DataPoint `json:"types"`      // Copies per primary card type
}

var colorNames = []struct {
	code, name, hex string
}{
	{"W", "White", "#F8E7B9"},
	{"U", "Blue", "#0E68AB"},
	{"B", "Black", "#150B00"},
	{"R", "Red", "#D3202A"},
	{"G", "Green", "#00733E"},
	{"", "Colorless", "#A0A0A0"},
}

var typeNames = []string{"Creature", "Planeswalker", "Battle", "Instant", "Sorcery", "Artifact", "Enchantment", "Land"}

// ComputeStats derives chart data from a deck snapshot, commander included.
func ComputeStats(state deckstate.State) *DeckStats {
	stats := &DeckStats{
		DeckName:   state.DeckName,
		TotalCards: state.TotalCards(),
	}

	curve := make([]float64, maxCurveBucket+1)
	colors := make(map[string]float64)
	types := make(map[string]float64)
	var manaSum float64
	var nonland int

	add := func(e *deckstate.Entry) {
		card := e.Card
		if card == nil {
			stats.Unresolved += e.Quantity
			return
		}
		quantity := float64(e.Quantity)

		if !cards.IsLand(card) {
			bucket := min(int(card.CMC), maxCurveBucket)
			curve[bucket] += quantity
			manaSum += card.CMC * quantity
			nonland += e.Quantity
		}

		if len(card.ColorIdentity) == 0 {
			colors[""] += quantity
		}
		for _, code := range card.ColorIdentity {
			colors[strings.ToUpper(code)] += quantity
		}

		types[primaryType(card)] += quantity
	}

	if state.Commander != nil {
		add(state.Commander)
	}
	for i := range state.Entries {
		add(&state.Entries[i])
	}

	if nonland > 0 {
		stats.AverageManaValue = manaSum / float64(nonland)
	}

	stats.ManaCurve = make([]DataPoint, len(curve))
	for i, count := range curve {
		label := strconv.Itoa(i)
		if i == maxCurveBucket {
			label += "+"
		}
		stats.ManaCurve[i] = DataPoint{Label: label, Value: count}
	}

	stats.Colors = make([]DataPoint, 0, len(colorNames))
	for _, c := range colorNames {
		stats.Colors = append(stats.Colors, DataPoint{Label: c.name, Value: colors[c.code]})
	}

	stats.Types = make([]DataPoint, 0, len(typeNames)+1)
	for _, t := range append(typeNames, "Other") {
		if types[t] > 0 {
			stats.Types = append(stats.Types, DataPoint{Label: t, Value: types[t]})
		}
	}

	return stats
}

func primaryType(card *cards.Card) string {
	for _, t := range typeNames {
		if strings.Contains(card.TypeLine, t) {
			return t
		}
	}
	return "Other"
}

// colorPalette returns the mana colors of the non-empty points in order.
func colorPalette(points []DataPoint) []string {
	palette := make([]string, 0, len(points))
	for _, point := range points {
		if point.Value == 0 {
			continue
		}
		for _, c := range colorNames {
			if c.name == point.Label {
				palette = append(palette, c.hex)
			}
		}
	}
	return palette
}

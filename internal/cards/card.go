// Package cards defines the card model shared by the deck state manager,
// the card lookup clients and the local API.
package cards

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Card represents the attributes of a Magic card as served by the card API.
// Cards are treated as immutable values once resolved.
type Card struct {
	// Opaque card identifier assigned by the card API
	ID string `json:"id"`

	// Basic card information
	Name     string `json:"name"`
	TypeLine string `json:"type_line"`

	// Mana information
	ManaCost string  `json:"mana_cost"`
	CMC      float64 `json:"cmc"`

	// Colors and identity, as ordered single-character codes ("W", "U", ...)
	Colors        ColorList `json:"colors"`
	ColorIdentity ColorList `json:"color_identity"`

	// Price is a decimal string, nil when the card has no known price.
	Price *string `json:"price,omitempty"`

	// Imagery
	Image string `json:"image,omitempty"`
	Art   string `json:"art,omitempty"`
}

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Colors = slices.Clone(c.Colors)
	clone.ColorIdentity = slices.Clone(c.ColorIdentity)
	if c.Price != nil {
		price := *c.Price
		clone.Price = &price
	}
	return &clone
}

// SplitColors converts a compact color string such as "WUB" into single
// character codes. An empty string yields an empty, non-nil slice.
func SplitColors(s string) []string {
	s = strings.TrimSpace(s)
	codes := make([]string, 0, len(s))
	for _, r := range s {
		if r == ' ' || r == ',' {
			continue
		}
		codes = append(codes, strings.ToUpper(string(r)))
	}
	return codes
}

// JoinColors is the inverse of SplitColors.
func JoinColors(codes []string) string {
	return strings.Join(codes, "")
}

// ColorList is an ordered list of color codes. It decodes from either a JSON
// array (["W","U"]) or the compact string form used by the backend ("WU").
type ColorList []string

// UnmarshalJSON accepts an array, a compact string, or null.
func (l *ColorList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}

	var compact string
	if err := json.Unmarshal(data, &compact); err == nil {
		*l = SplitColors(compact)
		return nil
	}

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return fmt.Errorf("invalid color list %s: %w", data, err)
	}
	*l = codes
	return nil
}

// Package deckexport renders the live deck state as a shareable list.
package deckexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/deckstate"
)

// Format is a local export format.
type Format string

const (
	FormatText      Format = "txt"       // "1 Sol Ring" lines, commander first
	FormatArena     Format = "arena"     // Commander and Deck sections
	FormatPlainText Format = "plaintext" // "1x Sol Ring" grouped by card type
	FormatCSV       Format = "csv"       // quantity,name,type_line,mana_cost,commander
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatText, FormatArena, FormatPlainText, FormatCSV}
}

// Options controls deck export behavior.
type Options struct {
	Format       Format
	IncludeStats bool // Append card count and average mana value as comments
}

// DeckExport is a rendered deck.
type DeckExport struct {
	Content     string
	Format      Format
	Filename    string
	ContentType string
}

// Export renders state in the requested format. Entries whose card data has
// not resolved yet are written by name.
func Export(state deckstate.State, options *Options) (*DeckExport, error) {
	if options == nil {
		options = &Options{Format: FormatText}
	}

	var content string
	ext, contentType := "txt", "text/plain; charset=utf-8"

	switch options.Format {
	case FormatText, "":
		content = exportText(state)
	case FormatArena:
		content = exportArena(state)
	case FormatPlainText:
		content = exportPlainText(state)
	case FormatCSV:
		var err error
		if content, err = exportCSV(state); err != nil {
			return nil, err
		}
		ext, contentType = "csv", "text/csv; charset=utf-8"
	default:
		return nil, fmt.Errorf("unsupported export format: %s", options.Format)
	}

	if options.IncludeStats && options.Format != FormatCSV {
		content += statsFooter(state)
	}

	format := options.Format
	if format == "" {
		format = FormatText
	}
	return &DeckExport{
		Content:     content,
		Format:      format,
		Filename:    fmt.Sprintf("%s.%s", sanitizeFilename(state.DeckName), ext),
		ContentType: contentType,
	}, nil
}

func exportText(state deckstate.State) string {
	var sb strings.Builder
	if c := state.Commander; c != nil {
		fmt.Fprintf(&sb, "%d %s\n", c.Quantity, entryName(c))
	}
	for i := range state.Entries {
		e := &state.Entries[i]
		fmt.Fprintf(&sb, "%d %s\n", e.Quantity, entryName(e))
	}
	return sb.String()
}

func exportArena(state deckstate.State) string {
	var sb strings.Builder
	if c := state.Commander; c != nil {
		sb.WriteString("Commander\n")
		fmt.Fprintf(&sb, "%d %s\n\n", c.Quantity, entryName(c))
	}
	sb.WriteString("Deck\n")
	for i := range state.Entries {
		e := &state.Entries[i]
		fmt.Fprintf(&sb, "%d %s\n", e.Quantity, entryName(e))
	}
	return sb.String()
}

// typeOrder groups cards the way deck lists are usually read.
var typeOrder = []string{"Creature", "Planeswalker", "Battle", "Instant", "Sorcery", "Artifact", "Enchantment", "Land"}

func exportPlainText(state deckstate.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// %s\n", state.DeckName)
	if c := state.Commander; c != nil {
		fmt.Fprintf(&sb, "// Commander: %s\n", entryName(c))
	}

	groups := make(map[string][]*deckstate.Entry)
	for i := range state.Entries {
		e := &state.Entries[i]
		group := primaryType(e.Card)
		groups[group] = append(groups[group], e)
	}

	for _, group := range append(typeOrder, "Other") {
		entries := groups[group]
		if len(entries) == 0 {
			continue
		}
		count := 0
		for _, e := range entries {
			count += e.Quantity
		}
		fmt.Fprintf(&sb, "\n%s (%d):\n", group, count)
		sort.SliceStable(entries, func(i, j int) bool {
			return entryName(entries[i]) < entryName(entries[j])
		})
		for _, e := range entries {
			fmt.Fprintf(&sb, "%dx %s\n", e.Quantity, entryName(e))
		}
	}
	return sb.String()
}

func exportCSV(state deckstate.State) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{{"quantity", "name", "type_line", "mana_cost", "commander"}}
	if c := state.Commander; c != nil {
		rows = append(rows, csvRow(c, true))
	}
	for i := range state.Entries {
		rows = append(rows, csvRow(&state.Entries[i], false))
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}

func csvRow(e *deckstate.Entry, commander bool) []string {
	var typeLine, manaCost string
	if e.Card != nil {
		typeLine, manaCost = e.Card.TypeLine, e.Card.ManaCost
	}
	return []string{strconv.Itoa(e.Quantity), entryName(e), typeLine, manaCost, strconv.FormatBool(commander)}
}

func statsFooter(state deckstate.State) string {
	var sum float64
	var counted int
	for i := range state.Entries {
		e := &state.Entries[i]
		if e.Card == nil || cards.IsLand(e.Card) {
			continue
		}
		sum += e.Card.CMC * float64(e.Quantity)
		counted += e.Quantity
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n// Cards: %d\n", state.TotalCards())
	if counted > 0 {
		fmt.Fprintf(&sb, "// Average mana value: %.2f\n", sum/float64(counted))
	}
	return sb.String()
}

func primaryType(card *cards.Card) string {
	if card == nil {
		return "Other"
	}
	for _, t := range typeOrder {
		if strings.Contains(card.TypeLine, t) {
			return t
		}
	}
	return "Other"
}

func entryName(e *deckstate.Entry) string {
	if e.Card != nil && e.Card.Name != "" {
		return e.Card.Name
	}
	return e.CardName
}

// sanitizeFilename removes invalid characters from filename.
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if len(result) > 100 {
		result = result[:100]
	}
	if result == "" {
		result = "deck"
	}
	return result
}

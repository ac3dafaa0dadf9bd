// Package deckimport parses deck lists before they are uploaded to the deck
// service, so malformed files are rejected locally with a useful hint.
package deckimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ramonehamilton/commander-builder/internal/backend"
)

// TextHint describes the accepted plain text format.
const TextHint = `Use the standard Magic text deck format.

Example:
1 Sol Ring
1 Command Tower
1 Lightning Bolt
1 Counterspell

Format: quantity (space) card name`

// CSVHint describes the accepted CSV format.
const CSVHint = `Use a CSV file with a "quantity,name" header.

Example:
quantity,name
1,Sol Ring
1,Command Tower`

// ErrEmptyDeck is returned when a list contains no cards.
var ErrEmptyDeck = errors.New("no cards found in import")

// FormatError reports a list that does not follow the expected format.
type FormatError struct {
	Format backend.ImportFormat
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid %s deck list: line %d: %s", e.Format, e.Line, e.Reason)
	}
	return fmt.Sprintf("invalid %s deck list: %s", e.Format, e.Reason)
}

// Hint returns the example shown to users alongside the error.
func (e *FormatError) Hint() string {
	return HintFor(e.Format)
}

// HintFor returns the format example for format.
func HintFor(format backend.ImportFormat) string {
	if format == backend.ImportCSV {
		return CSVHint
	}
	return TextHint
}

// ParsedCard is a single line of a deck list.
type ParsedCard struct {
	Quantity        int
	Name            string
	SetCode         string // From Arena lines such as "1 Sol Ring (C21) 263"
	CollectorNumber string
	Commander       bool
}

// ParsedDeck is a validated deck list.
type ParsedDeck struct {
	Cards    []*ParsedCard
	Warnings []string
}

// TotalCards returns the summed quantity of all lines.
func (d *ParsedDeck) TotalCards() int {
	total := 0
	for _, c := range d.Cards {
		total += c.Quantity
	}
	return total
}

// Commander returns the card listed in a Commander section, or nil.
func (d *ParsedDeck) Commander() *ParsedCard {
	for _, c := range d.Cards {
		if c.Commander {
			return c
		}
	}
	return nil
}

var (
	// "4 Lightning Bolt", "4x Lightning Bolt" or "4 Lightning Bolt (M21) 123"
	lineRegex = regexp.MustCompile(`^(\d+)x?\s+(.+?)(?:\s+\(([A-Za-z0-9]+)\)(?:\s+(\S+))?)?$`)

	// "Lightning Bolt x4"
	trailingQuantityRegex = regexp.MustCompile(`^(.+?)\s+x(\d+)$`)
)

// Parse parses data in the given format.
func Parse(format backend.ImportFormat, data []byte) (*ParsedDeck, error) {
	switch format {
	case backend.ImportTxt:
		return ParseText(string(data))
	case backend.ImportCSV:
		return ParseCSV(data)
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
}

// ParseText parses a plain text or Arena export. Section headers ("Deck",
// "Commander", "Sideboard") and "//" comments are recognised; lines in a
// Commander section are flagged as the commander.
func ParseText(input string) (*ParsedDeck, error) {
	input = strings.TrimPrefix(input, "\ufeff")
	if strings.TrimSpace(input) == "" {
		return nil, &FormatError{Format: backend.ImportTxt, Reason: ErrEmptyDeck.Error()}
	}

	deck := &ParsedDeck{Cards: make([]*ParsedCard, 0)}
	section := ""

	for i, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}

		switch strings.ToLower(strings.TrimSuffix(line, ":")) {
		case "deck", "main", "mainboard":
			section = ""
			continue
		case "commander":
			section = "commander"
			continue
		case "sideboard", "maybeboard", "companion":
			section = "skip"
			continue
		}

		card, err := parseLine(line)
		if err != nil {
			return nil, &FormatError{Format: backend.ImportTxt, Line: i + 1, Reason: err.Error()}
		}
		if section == "skip" {
			deck.Warnings = append(deck.Warnings, fmt.Sprintf("Line %d: ignored %s", i+1, card.Name))
			continue
		}
		card.Commander = section == "commander"
		deck.Cards = append(deck.Cards, card)
	}

	if len(deck.Cards) == 0 {
		return nil, &FormatError{Format: backend.ImportTxt, Reason: ErrEmptyDeck.Error()}
	}
	return deck, nil
}

func parseLine(line string) (*ParsedCard, error) {
	if m := lineRegex.FindStringSubmatch(line); m != nil {
		quantity, err := parseQuantity(m[1])
		if err != nil {
			return nil, err
		}
		return &ParsedCard{
			Quantity:        quantity,
			Name:            strings.TrimSpace(m[2]),
			SetCode:         strings.ToUpper(m[3]),
			CollectorNumber: m[4],
		}, nil
	}

	if m := trailingQuantityRegex.FindStringSubmatch(line); m != nil {
		quantity, err := parseQuantity(m[2])
		if err != nil {
			return nil, err
		}
		return &ParsedCard{Quantity: quantity, Name: strings.TrimSpace(m[1])}, nil
	}

	return nil, fmt.Errorf("could not parse %q", line)
}

func parseQuantity(s string) (int, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	if quantity < 1 {
		return 0, fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}
	return quantity, nil
}

// ParseCSV parses a CSV list. The header must contain "quantity" and "name"
// columns in any order; other columns are ignored.
func ParseCSV(data []byte) (*ParsedDeck, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &FormatError{Format: backend.ImportCSV, Reason: ErrEmptyDeck.Error()}
	}
	if err != nil {
		return nil, &FormatError{Format: backend.ImportCSV, Line: 1, Reason: err.Error()}
	}

	quantityCol, nameCol := -1, -1
	for i, column := range header {
		switch strings.ToLower(strings.TrimSpace(column)) {
		case "quantity", "qty", "count":
			quantityCol = i
		case "name", "card", "card name":
			nameCol = i
		}
	}
	if quantityCol < 0 || nameCol < 0 {
		return nil, &FormatError{Format: backend.ImportCSV, Line: 1, Reason: `header must contain "quantity" and "name"`}
	}

	deck := &ParsedDeck{Cards: make([]*ParsedCard, 0)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &FormatError{Format: backend.ImportCSV, Line: parseErr.Line, Reason: parseErr.Err.Error()}
			}
			return nil, &FormatError{Format: backend.ImportCSV, Reason: err.Error()}
		}
		line, _ := reader.FieldPos(0)
		if len(record) <= max(quantityCol, nameCol) {
			return nil, &FormatError{Format: backend.ImportCSV, Line: line, Reason: "missing columns"}
		}

		name := strings.TrimSpace(record[nameCol])
		if name == "" {
			return nil, &FormatError{Format: backend.ImportCSV, Line: line, Reason: "empty card name"}
		}
		quantity, err := parseQuantity(record[quantityCol])
		if err != nil {
			return nil, &FormatError{Format: backend.ImportCSV, Line: line, Reason: err.Error()}
		}
		deck.Cards = append(deck.Cards, &ParsedCard{Quantity: quantity, Name: name})
	}

	if len(deck.Cards) == 0 {
		return nil, &FormatError{Format: backend.ImportCSV, Reason: ErrEmptyDeck.Error()}
	}
	return deck, nil
}

// Encode renders the deck in the canonical form accepted by the deck
// service: "quantity name" lines, or a "quantity,name" CSV.
func (d *ParsedDeck) Encode(format backend.ImportFormat) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case backend.ImportTxt:
		for _, c := range d.Cards {
			fmt.Fprintf(&buf, "%d %s\n", c.Quantity, c.Name)
		}
	case backend.ImportCSV:
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"quantity", "name"}); err != nil {
			return nil, err
		}
		for _, c := range d.Cards {
			if err := w.Write([]string{strconv.Itoa(c.Quantity), c.Name}); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
	return buf.Bytes(), nil
}

// FormatFromFilename infers the import format from a file extension.
func FormatFromFilename(path string) (backend.ImportFormat, bool) {
	format := backend.ImportFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	return format, format.Valid()
}

// NameFromFilename derives a deck name from a file name.
func NameFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

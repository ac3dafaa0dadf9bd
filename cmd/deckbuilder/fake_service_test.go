package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/cards"
)

// fakeService serves both the deck service and the card API from memory.
type fakeService struct {
	mu      sync.Mutex
	decks   map[int]*backend.FullDeck
	nextID  int
	catalog []*cards.Card
	imports []string
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{
		decks:  make(map[int]*backend.FullDeck),
		nextID: 1,
		catalog: []*cards.Card{
			{ID: "sol-ring", Name: "Sol Ring", TypeLine: "Artifact", ManaCost: "{1}", CMC: 1, ColorIdentity: cards.ColorList{}},
			{ID: "bolt", Name: "Lightning Bolt", TypeLine: "Instant", ManaCost: "{R}", CMC: 1, ColorIdentity: cards.ColorList{"R"}},
			{ID: "atraxa", Name: "Atraxa, Praetors' Voice", TypeLine: "Legendary Creature", ManaCost: "{G}{W}{U}{B}", CMC: 4, ColorIdentity: cards.ColorList{"W", "U", "B", "G"}},
			{ID: "island", Name: "Island", TypeLine: "Basic Land", ColorIdentity: cards.ColorList{}},
		},
	}

	r := chi.NewRouter()
	r.Get("/decks", f.listDecks)
	r.Post("/decks", f.createDeck)
	r.Post("/decks/import/{format}", f.importDeck)
	r.Get("/decks/{id}/full", f.fullDeck)
	r.Get("/decks/{id}/commander", f.commander)
	r.Put("/decks/{id}/commander", f.setCommander)
	r.Post("/decks/{id}/cards", f.addCard)
	r.Delete("/decks/{id}/cards/{cardID}", f.removeCard)
	r.Delete("/decks/{id}", f.deleteDeck)
	r.Patch("/decks/{id}", f.renameDeck)
	r.Post("/decks/{id}/copy", f.copyDeck)
	r.Get("/decks/{id}/export/{format}", f.exportDeck)
	r.Get("/cards/named/{name}", f.cardByName)
	r.Get("/cards/autocomplete/{query}", f.autocomplete)
	r.Get("/cards/{cardID}", f.cardByID)
	r.Get("/commander/", f.topCommanders)
	r.Get("/commander/{name}/meta", f.commanderMeta)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeService) addDeck(name string, rows ...*backend.DeckCard) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	if rows == nil {
		rows = []*backend.DeckCard{}
	}
	f.decks[id] = &backend.FullDeck{ID: id, Name: name, LastUpdate: "2026-10-01", Cards: rows}
	return id
}

func (f *fakeService) deck(id int) *backend.FullDeck {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decks[id]
}

func (f *fakeService) card(ref string) *cards.Card {
	for _, c := range f.catalog {
		if c.ID == ref || strings.EqualFold(c.Name, ref) {
			return c
		}
	}
	return nil
}

// param returns an unescaped URL parameter; chi matches on the raw path
// when the request path needed escaping.
func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

func writeFakeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fakeError(w http.ResponseWriter, status int, msg string) {
	writeFakeJSON(w, status, map[string]string{"detail": msg})
}

// lockedDeck resolves {id} and returns with f.mu held.
func (f *fakeService) lockedDeck(w http.ResponseWriter, r *http.Request) (*backend.FullDeck, bool) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	f.mu.Lock()
	deck := f.decks[id]
	if deck == nil {
		f.mu.Unlock()
		fakeError(w, http.StatusNotFound, "deck not found")
		return nil, false
	}
	return deck, true
}

func (f *fakeService) listDecks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	decks := make([]backend.Deck, 0, len(f.decks))
	for id := 1; id < f.nextID; id++ {
		if d := f.decks[id]; d != nil {
			decks = append(decks, d.Summary())
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"decks": decks})
}

func (f *fakeService) createDeck(w http.ResponseWriter, r *http.Request) {
	var body struct{ Name string }
	_ = json.NewDecoder(r.Body).Decode(&body)
	id := f.addDeck(body.Name)
	writeFakeJSON(w, http.StatusCreated, f.deck(id).Summary())
}

func (f *fakeService) importDeck(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		fakeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, _ := io.ReadAll(file)
	f.mu.Lock()
	f.imports = append(f.imports, string(content))
	f.mu.Unlock()

	id := f.addDeck(r.FormValue("name"))
	writeFakeJSON(w, http.StatusCreated, f.deck(id))
}

func (f *fakeService) fullDeck(w http.ResponseWriter, r *http.Request) {
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	defer f.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, deck)
}

func (f *fakeService) commander(w http.ResponseWriter, r *http.Request) {
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	defer f.mu.Unlock()
	for _, row := range deck.Cards {
		if row.IsCommander {
			writeFakeJSON(w, http.StatusOK, row)
			return
		}
	}
	fakeError(w, http.StatusNotFound, "no commander")
}

func (f *fakeService) setCommander(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CardID string `json:"card_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	defer f.mu.Unlock()
	var found *backend.DeckCard
	for _, row := range deck.Cards {
		row.IsCommander = row.ID() == body.CardID
		if row.IsCommander {
			found = row
		}
	}
	if found == nil {
		fakeError(w, http.StatusBadRequest, "card not in deck")
		return
	}
	writeFakeJSON(w, http.StatusOK, found)
}

func (f *fakeService) addCard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CardID   string `json:"card_id"`
		Quantity int    `json:"quantity"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	card := f.card(body.CardID)
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	defer f.mu.Unlock()
	if card == nil {
		fakeError(w, http.StatusBadRequest, "unknown card")
		return
	}
	for _, row := range deck.Cards {
		if row.ID() == body.CardID {
			row.Quantity += body.Quantity
			writeFakeJSON(w, http.StatusOK, row)
			return
		}
	}
	row := &backend.DeckCard{Card: card, Quantity: body.Quantity}
	deck.Cards = append(deck.Cards, row)
	writeFakeJSON(w, http.StatusOK, row)
}

func (f *fakeService) removeCard(w http.ResponseWriter, r *http.Request) {
	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	cardID := param(r, "cardID")
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	defer f.mu.Unlock()
	for i, row := range deck.Cards {
		if row.ID() != cardID {
			continue
		}
		row.Quantity -= quantity
		if row.Quantity <= 0 {
			deck.Cards = append(deck.Cards[:i], deck.Cards[i+1:]...)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	fakeError(w, http.StatusNotFound, "card not in deck")
}

func (f *fakeService) deleteDeck(w http.ResponseWriter, r *http.Request) {
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	delete(f.decks, deck.ID)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeService) renameDeck(w http.ResponseWriter, r *http.Request) {
	var body struct{ Name string }
	_ = json.NewDecoder(r.Body).Decode(&body)
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	defer f.mu.Unlock()
	deck.Name = body.Name
	writeFakeJSON(w, http.StatusOK, deck.Summary())
}

func (f *fakeService) copyDeck(w http.ResponseWriter, r *http.Request) {
	var body struct{ Name string }
	_ = json.NewDecoder(r.Body).Decode(&body)
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	rows := make([]*backend.DeckCard, len(deck.Cards))
	for i, row := range deck.Cards {
		c := *row
		rows[i] = &c
	}
	f.mu.Unlock()
	id := f.addDeck(body.Name, rows...)
	writeFakeJSON(w, http.StatusCreated, f.deck(id).Summary())
}

func (f *fakeService) exportDeck(w http.ResponseWriter, r *http.Request) {
	deck, ok := f.lockedDeck(w, r)
	if !ok {
		return
	}
	defer f.mu.Unlock()
	var b strings.Builder
	for _, row := range deck.Cards {
		b.WriteString(strconv.Itoa(row.Quantity) + " " + row.Card.Name + "\n")
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Disposition", `attachment; filename="`+deck.Name+`.txt"`)
	_, _ = io.WriteString(w, b.String())
}

func (f *fakeService) cardByName(w http.ResponseWriter, r *http.Request) {
	if card := f.card(param(r, "name")); card != nil && strings.EqualFold(card.Name, param(r, "name")) {
		writeFakeJSON(w, http.StatusOK, card)
		return
	}
	fakeError(w, http.StatusNotFound, "not found")
}

func (f *fakeService) cardByID(w http.ResponseWriter, r *http.Request) {
	if card := f.card(param(r, "cardID")); card != nil && card.ID == param(r, "cardID") {
		writeFakeJSON(w, http.StatusOK, card)
		return
	}
	fakeError(w, http.StatusNotFound, "not found")
}

func (f *fakeService) autocomplete(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(param(r, "query"))
	found := []*cards.Card{}
	for _, c := range f.catalog {
		if strings.Contains(strings.ToLower(c.Name), query) {
			found = append(found, c)
		}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"cards": found})
}

func (f *fakeService) topCommanders(w http.ResponseWriter, r *http.Request) {
	writeFakeJSON(w, http.StatusOK, map[string]any{"cards": []*cards.Card{f.card("atraxa")}})
}

func (f *fakeService) commanderMeta(w http.ResponseWriter, r *http.Request) {
	commander := param(r, "name")
	switch r.URL.Query().Get("category") {
	case "":
		writeFakeJSON(w, http.StatusOK, map[string]any{
			"commander":            commander,
			"available_categories": []string{"ramp", "removal"},
		})
	case "ramp":
		writeFakeJSON(w, http.StatusOK, map[string]any{"commander": commander, "category": "ramp", "cards": []*cards.Card{f.card("sol-ring")}})
	default:
		writeFakeJSON(w, http.StatusOK, map[string]any{"commander": commander, "cards": []*cards.Card{}})
	}
}

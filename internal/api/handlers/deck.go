// Package handlers implements the local API endpoints.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/commander-builder/internal/api/response"
	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/charts"
	"github.com/ramonehamilton/commander-builder/internal/deckexport"
	"github.com/ramonehamilton/commander-builder/internal/deckstate"
)

// DeckManager is the live deck editor.
type DeckManager interface {
	State() deckstate.State
	Initialize(ctx context.Context, deckID int) error
	AddCard(ctx context.Context, card *cards.Card, quantity int) error
	AddCardByName(ctx context.Context, name string, quantity int) error
	RemoveEntry(ctx context.Context, index int) error
	RemoveCardByID(ctx context.Context, cardID string) error
	SetCommander(ctx context.Context, cardID string) error
	ClearError()
}

// CardGetter looks a card up by id.
type CardGetter interface {
	GetByID(ctx context.Context, id string) (*cards.Card, error)
}

// DeckHandler handles requests against the deck being edited.
type DeckHandler struct {
	manager DeckManager
	cards   CardGetter
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(manager DeckManager, cards CardGetter) *DeckHandler {
	return &DeckHandler{manager: manager, cards: cards}
}

// GetDeck returns the current deck state.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	state := h.manager.State()
	response.Success(w, deckView(state))
}

// DeckView is the JSON shape of the deck state.
type DeckView struct {
	deckstate.State
	TotalCards int `json:"total_cards"`
}

func deckView(state deckstate.State) DeckView {
	return DeckView{State: state, TotalCards: state.TotalCards()}
}

// LoadDeckRequest selects a deck; zero picks the first deck or creates one.
type LoadDeckRequest struct {
	DeckID int `json:"deck_id"`
}

// LoadDeck initializes the manager with a deck.
func (h *DeckHandler) LoadDeck(w http.ResponseWriter, r *http.Request) {
	var req LoadDeckRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.DeckID < 0 {
		response.BadRequest(w, errors.New("deck_id cannot be negative"))
		return
	}

	if err := h.manager.Initialize(r.Context(), req.DeckID); err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, deckView(h.manager.State()))
}

// AddCardRequest adds copies of a card by id or by name.
type AddCardRequest struct {
	CardID   string `json:"card_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
}

// AddCard adds a card to the deck.
func (h *DeckHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	var req AddCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	var err error
	switch {
	case req.CardID != "":
		var card *cards.Card
		card, err = h.cards.GetByID(r.Context(), req.CardID)
		if err == nil {
			err = h.manager.AddCard(r.Context(), card, req.Quantity)
		}
	case strings.TrimSpace(req.Name) != "":
		err = h.manager.AddCardByName(r.Context(), req.Name, req.Quantity)
	default:
		response.BadRequest(w, errors.New("card_id or name is required"))
		return
	}

	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, deckView(h.manager.State()))
}

// RemoveEntry removes one copy of the entry at the index.
func (h *DeckHandler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		response.BadRequest(w, errors.New("invalid entry index"))
		return
	}

	if err := h.manager.RemoveEntry(r.Context(), index); err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, deckView(h.manager.State()))
}

// RemoveCard removes one copy of a card, or clears the commander.
func (h *DeckHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")
	if cardID == "" {
		response.BadRequest(w, errors.New("card ID is required"))
		return
	}

	if err := h.manager.RemoveCardByID(r.Context(), cardID); err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, deckView(h.manager.State()))
}

// SetCommanderRequest designates the deck's commander.
type SetCommanderRequest struct {
	CardID string `json:"card_id"`
}

// SetCommander sets the commander.
func (h *DeckHandler) SetCommander(w http.ResponseWriter, r *http.Request) {
	var req SetCommanderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}
	if req.CardID == "" {
		response.BadRequest(w, errors.New("card_id is required"))
		return
	}

	if err := h.manager.SetCommander(r.Context(), req.CardID); err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, deckView(h.manager.State()))
}

// ClearError dismisses the deck's last error.
func (h *DeckHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.manager.ClearError()
	response.NoContent(w)
}

// CompatibilityResult reports whether a card fits the commander's identity.
type CompatibilityResult struct {
	CardID     string `json:"card_id"`
	Compatible bool   `json:"compatible"`
	BasicLand  bool   `json:"basic_land"`
	Land       bool   `json:"land"`
}

// GetCompatibility checks the card_id query parameter against the commander.
func (h *DeckHandler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	cardID := r.URL.Query().Get("card_id")
	if cardID == "" {
		response.BadRequest(w, errors.New("card_id is required"))
		return
	}

	card, err := h.cards.GetByID(r.Context(), cardID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	var commander *cards.Card
	if c := h.manager.State().Commander; c != nil {
		commander = c.Card
	}

	response.Success(w, CompatibilityResult{
		CardID:     cardID,
		Compatible: cards.IsCompatibleWithCommander(card, commander),
		BasicLand:  cards.IsBasicLand(card),
		Land:       cards.IsLand(card),
	})
}

// ExportDeck renders the live state locally in the format path parameter.
func (h *DeckHandler) ExportDeck(w http.ResponseWriter, r *http.Request) {
	format := deckexport.Format(chi.URLParam(r, "format"))
	export, err := deckexport.Export(h.manager.State(), &deckexport.Options{
		Format:       format,
		IncludeStats: r.URL.Query().Get("stats") == "true",
	})
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	_, _ = w.Write([]byte(export.Content))
}

// GetChart renders the deck statistics page as HTML.
func (h *DeckHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	stats := charts.ComputeStats(h.manager.State())
	if err := charts.RenderDeckStats(&buf, stats, charts.DefaultChartConfig()); err != nil {
		response.InternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// GetStats returns the deck statistics as JSON.
func (h *DeckHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	response.Success(w, charts.ComputeStats(h.manager.State()))
}

// decodeOptional decodes a JSON body when one is present.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, errors.New("invalid request body"))
		return false
	}
	return true
}

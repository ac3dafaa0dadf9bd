package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/commander-builder/internal/api/response"
	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/deckimport"
	"github.com/ramonehamilton/commander-builder/internal/events"
)

// DeckLibrary manages the client's saved decks.
type DeckLibrary interface {
	ListDeckSummaries(ctx context.Context) ([]backend.DeckSummary, error)
	CreateDeck(ctx context.Context, name string) (*backend.Deck, error)
	DeleteDeck(ctx context.Context, deckID int) error
	RenameDeck(ctx context.Context, deckID int, name string) (*backend.Deck, error)
	CopyDeck(ctx context.Context, deckID int, name string) (*backend.Deck, error)
	ExportDeck(ctx context.Context, deckID int, format backend.ExportFormat) (*backend.ExportFile, error)
	ImportDeck(ctx context.Context, format backend.ImportFormat, name string, content []byte) (*backend.FullDeck, error)
}

// DecksHandler handles deck library requests.
type DecksHandler struct {
	library    DeckLibrary
	dispatcher *events.EventDispatcher
}

// NewDecksHandler creates a new DecksHandler. dispatcher may be nil.
func NewDecksHandler(library DeckLibrary, dispatcher *events.EventDispatcher) *DecksHandler {
	return &DecksHandler{library: library, dispatcher: dispatcher}
}

func (h *DecksHandler) notify(ctx context.Context, action string, deckID int, name string) {
	if h.dispatcher == nil {
		return
	}
	h.dispatcher.Dispatch(events.NewTypedEvent(ctx, events.TypeDecksUpdated, events.DecksUpdatedEvent{
		Action: action,
		DeckID: deckID,
		Name:   name,
	}))
}

// GetDecks lists decks with their commanders.
func (h *DecksHandler) GetDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.library.ListDeckSummaries(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, decks)
}

// DeckNameRequest carries a deck name for create, rename and copy.
type DeckNameRequest struct {
	Name string `json:"name"`
}

// CreateDeck creates a new deck.
func (h *DecksHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	name, ok := readName(w, r, true)
	if !ok {
		return
	}

	deck, err := h.library.CreateDeck(r.Context(), name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	h.notify(r.Context(), "created", deck.ID, deck.Name)
	response.Created(w, deck)
}

// DeleteDeck deletes a deck.
func (h *DecksHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	deckID, ok := deckIDParam(w, r)
	if !ok {
		return
	}

	if err := h.library.DeleteDeck(r.Context(), deckID); err != nil {
		response.FromError(w, err)
		return
	}
	h.notify(r.Context(), "deleted", deckID, "")
	response.NoContent(w)
}

// RenameDeck renames a deck.
func (h *DecksHandler) RenameDeck(w http.ResponseWriter, r *http.Request) {
	deckID, ok := deckIDParam(w, r)
	if !ok {
		return
	}
	name, ok := readName(w, r, true)
	if !ok {
		return
	}

	deck, err := h.library.RenameDeck(r.Context(), deckID, name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	h.notify(r.Context(), "renamed", deck.ID, deck.Name)
	response.Success(w, deck)
}

// CopyDeck duplicates a deck. An empty name lets the service choose one.
func (h *DecksHandler) CopyDeck(w http.ResponseWriter, r *http.Request) {
	deckID, ok := deckIDParam(w, r)
	if !ok {
		return
	}
	name, ok := readName(w, r, false)
	if !ok {
		return
	}

	deck, err := h.library.CopyDeck(r.Context(), deckID, name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	h.notify(r.Context(), "copied", deck.ID, deck.Name)
	response.Created(w, deck)
}

// ExportDeck downloads a deck file rendered by the deck service.
func (h *DecksHandler) ExportDeck(w http.ResponseWriter, r *http.Request) {
	deckID, ok := deckIDParam(w, r)
	if !ok {
		return
	}
	format := backend.ExportFormat(chi.URLParam(r, "format"))
	if !format.Valid() {
		response.BadRequest(w, errors.New("format must be txt, csv or json"))
		return
	}

	file, err := h.library.ExportDeck(r.Context(), deckID, format)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if file.ContentType != "" {
		w.Header().Set("Content-Type", file.ContentType)
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	_, _ = w.Write(file.Data)
}

// ImportDeckRequest uploads a deck list.
type ImportDeckRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ImportDeck validates a deck list locally and uploads it.
func (h *DecksHandler) ImportDeck(w http.ResponseWriter, r *http.Request) {
	format := backend.ImportFormat(chi.URLParam(r, "format"))
	if !format.Valid() {
		response.BadRequest(w, errors.New("format must be txt or csv"))
		return
	}

	var req ImportDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(w, errors.New("deck name is required"))
		return
	}

	parsed, err := deckimport.Parse(format, []byte(req.Content))
	if err != nil {
		response.FromError(w, err)
		return
	}
	content, err := parsed.Encode(format)
	if err != nil {
		response.InternalError(w, err)
		return
	}

	deck, err := h.library.ImportDeck(r.Context(), format, name, content)
	if err != nil {
		response.FromError(w, err)
		return
	}
	h.notify(r.Context(), "imported", deck.ID, deck.Name)
	response.Created(w, deck)
}

func deckIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	deckID, err := strconv.Atoi(chi.URLParam(r, "deckID"))
	if err != nil || deckID <= 0 {
		response.BadRequest(w, errors.New("invalid deck ID"))
		return 0, false
	}
	return deckID, true
}

func readName(w http.ResponseWriter, r *http.Request, required bool) (string, bool) {
	var req DeckNameRequest
	if !decodeOptional(w, r, &req) {
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if required && name == "" {
		response.BadRequest(w, errors.New("deck name is required"))
		return "", false
	}
	return name, true
}

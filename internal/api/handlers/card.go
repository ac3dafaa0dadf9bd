package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/commander-builder/internal/api/response"
	"github.com/ramonehamilton/commander-builder/internal/cardlookup"
	"github.com/ramonehamilton/commander-builder/internal/cards"
)

// CardService searches and resolves cards.
type CardService interface {
	Search(ctx context.Context, query string, page int) (*cardlookup.SearchResult, error)
	GetByName(ctx context.Context, name string) (*cards.Card, error)
	GetByID(ctx context.Context, id string) (*cards.Card, error)
}

// CardHandler handles card-related API requests.
type CardHandler struct {
	service CardService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(service CardService) *CardHandler {
	return &CardHandler{service: service}
}

// SearchCards returns one page of cards matching the q parameter.
func (h *CardHandler) SearchCards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, errors.New("query parameter q is required"))
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			response.BadRequest(w, errors.New("invalid page"))
			return
		}
		page = parsed
	}

	result, err := h.service.Search(r.Context(), query, page)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, result.Cards, result.Page, cardlookup.PageSize, result.TotalCards)
}

// GetCard returns a card by id.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")
	if cardID == "" {
		response.BadRequest(w, errors.New("card ID is required"))
		return
	}

	card, err := h.service.GetByID(r.Context(), cardID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, card)
}

// GetCardByName returns a card by exact name.
func (h *CardHandler) GetCardByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		response.BadRequest(w, errors.New("card name is required"))
		return
	}

	card, err := h.service.GetByName(r.Context(), name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, card)
}

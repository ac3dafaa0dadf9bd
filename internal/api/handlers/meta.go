package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/commander-builder/internal/api/response"
	"github.com/ramonehamilton/commander-builder/internal/cards"
)

// MetaService provides commander meta data.
type MetaService interface {
	TopCommanders(ctx context.Context) ([]*cards.Card, error)
	AvailableCategories(ctx context.Context, commander string) ([]string, error)
	CardsByCategory(ctx context.Context, commander, category string) ([]*cards.Card, error)
	AllMetaCards(ctx context.Context, commander string) (map[string][]*cards.Card, error)
}

// MetaHandler handles commander meta requests.
type MetaHandler struct {
	service MetaService
}

// NewMetaHandler creates a new MetaHandler.
func NewMetaHandler(service MetaService) *MetaHandler {
	return &MetaHandler{service: service}
}

// GetTopCommanders returns the most played commanders.
func (h *MetaHandler) GetTopCommanders(w http.ResponseWriter, r *http.Request) {
	commanders, err := h.service.TopCommanders(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, commanders)
}

// CommanderMeta is the commander meta payload. Cards is keyed by category.
type CommanderMeta struct {
	Commander  string                   `json:"commander"`
	Categories []string                 `json:"categories,omitempty"`
	Cards      map[string][]*cards.Card `json:"cards,omitempty"`
}

// GetCommanderMeta returns the categories for a commander. With ?category=
// it returns that category's cards; with ?all=true every category's cards.
func (h *MetaHandler) GetCommanderMeta(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		response.BadRequest(w, errors.New("commander name is required"))
		return
	}

	meta := CommanderMeta{Commander: name}
	query := r.URL.Query()

	switch {
	case query.Get("category") != "":
		category := query.Get("category")
		found, err := h.service.CardsByCategory(r.Context(), name, category)
		if err != nil {
			response.FromError(w, err)
			return
		}
		meta.Categories = []string{category}
		meta.Cards = map[string][]*cards.Card{category: found}

	case query.Get("all") == "true":
		all, err := h.service.AllMetaCards(r.Context(), name)
		if err != nil {
			response.FromError(w, err)
			return
		}
		meta.Cards = all
		for category := range all {
			meta.Categories = append(meta.Categories, category)
		}
		slices.Sort(meta.Categories)

	default:
		categories, err := h.service.AvailableCategories(r.Context(), name)
		if err != nil {
			response.FromError(w, err)
			return
		}
		meta.Categories = categories
	}

	response.Success(w, meta)
}

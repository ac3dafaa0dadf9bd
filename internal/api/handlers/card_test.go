package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/commander-builder/internal/cardlookup"
	"github.com/ramonehamilton/commander-builder/internal/cards"
)

func TestCardHandler_Search(t *testing.T) {
	lookup := &mockCards{search: &cardlookup.SearchResult{
		Cards:      []*cards.Card{{ID: "ring", Name: "Sol Ring"}},
		TotalCards: 41,
		Page:       2,
		HasMore:    true,
	}}
	h := NewCardHandler(lookup)

	w := serve(t, http.MethodGet, "/cards/search", "/cards/search?q=sol&page=2", h.SearchCards, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, lookup.page)
	assert.JSONEq(t, `{"data":[{"id":"ring","name":"Sol Ring","type_line":"","mana_cost":"","cmc":0,"colors":null,"color_identity":null}],
		"page":2,"page_size":20,"total_count":41,"total_pages":3,"has_more":true}`, w.Body.String())
}

func TestCardHandler_SearchValidation(t *testing.T) {
	h := NewCardHandler(&mockCards{})

	w := serve(t, http.MethodGet, "/cards/search", "/cards/search", h.SearchCards, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, http.MethodGet, "/cards/search", "/cards/search?q=sol&page=0", h.SearchCards, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCardHandler_GetCard(t *testing.T) {
	h := NewCardHandler(&mockCards{byID: map[string]*cards.Card{"ring": {ID: "ring", Name: "Sol Ring"}}})

	w := serve(t, http.MethodGet, "/cards/{cardID}", "/cards/ring", h.GetCard, "")
	require.Equal(t, http.StatusOK, w.Code)
	var card cards.Card
	decodeData(t, w, &card)
	assert.Equal(t, "Sol Ring", card.Name)

	w = serve(t, http.MethodGet, "/cards/{cardID}", "/cards/missing", h.GetCard, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(t, http.MethodGet, "/cards/named/{name}", "/cards/named/Sol%20Ring", h.GetCardByName, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCardHandler_APIFailure(t *testing.T) {
	h := NewCardHandler(&mockCards{err: errors.New("boom")})

	w := serve(t, http.MethodGet, "/cards/{cardID}", "/cards/ring", h.GetCard, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

package cardlookup

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/ramonehamilton/commander-builder/internal/cards"
)

// PageSize is the number of cards in one search page.
const PageSize = 20

// SearchResult is one page of search results.
type SearchResult struct {
	Cards      []*cards.Card `json:"cards"`
	TotalCards int           `json:"total_cards"`
	Page       int           `json:"page"`
	HasMore    bool          `json:"has_more"`
}

// Search returns page (1-based) of the autocomplete results for query,
// ordered by fuzzy relevance to the query.
func (c *Client) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	if page < 1 {
		page = 1
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return &SearchResult{Cards: []*cards.Card{}, Page: page}, nil
	}

	found, err := c.Autocomplete(ctx, query)
	if err != nil {
		return nil, err
	}
	return paginate(RankByName(query, found), page), nil
}

func paginate(ranked []*cards.Card, page int) *SearchResult {
	start := min((page-1)*PageSize, len(ranked))
	end := min(start+PageSize, len(ranked))
	return &SearchResult{
		Cards:      ranked[start:end:end],
		TotalCards: len(ranked),
		Page:       page,
		HasMore:    end < len(ranked),
	}
}

type cardNames []*cards.Card

func (n cardNames) Len() int            { return len(n) }
func (n cardNames) String(i int) string { return strings.ToLower(n[i].Name) }

// RankByName orders found by fuzzy match score against query. Cards that do
// not fuzzy-match keep their original order after the matches.
func RankByName(query string, found []*cards.Card) []*cards.Card {
	ranked := make([]*cards.Card, 0, len(found))
	matched := make([]bool, len(found))
	for _, m := range fuzzy.FindFrom(strings.ToLower(query), cardNames(found)) {
		ranked = append(ranked, found[m.Index])
		matched[m.Index] = true
	}
	for i, card := range found {
		if !matched[i] {
			ranked = append(ranked, card)
		}
	}
	return ranked
}

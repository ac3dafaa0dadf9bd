package backend

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/commander-builder/internal/cards"
)

// summaryConcurrency bounds parallel commander fetches.
const summaryConcurrency = 4

// DeckSummary is a deck list row with its commander, if any.
type DeckSummary struct {
	Deck
	Commander *cards.Card `json:"commander,omitempty"`
}

// ListDeckSummaries lists decks and fetches each deck's commander in
// parallel. A failed commander fetch leaves that row without a commander;
// only listing failures and cancellation are returned as errors.
func (c *Client) ListDeckSummaries(ctx context.Context) ([]DeckSummary, error) {
	decks, err := c.ListDecks(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]DeckSummary, len(decks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)

	for i, deck := range decks {
		summaries[i].Deck = deck
		g.Go(func() error {
			commander, err := c.GetCommander(gctx, deck.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("Failed to fetch commander for deck list",
					zap.Int("deck_id", deck.ID), zap.Error(err))
				return nil
			}
			if commander != nil {
				summaries[i].Commander = commander.Card
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

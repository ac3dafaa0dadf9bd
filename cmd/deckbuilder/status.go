package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ramonehamilton/commander-builder/internal/metrics"
)

// statusReport is what "status" prints.
type statusReport struct {
	Version     string         `json:"version"`
	BackendURL  string         `json:"backend_url"`
	CardsURL    string         `json:"cards_url"`
	ClientID    string         `json:"client_id"`
	DeckService string         `json:"deck_service"`
	Decks       int            `json:"decks"`
	CacheDB     string         `json:"cache_db,omitempty"`
	CachedCards int            `json:"cached_cards"`
	Metrics     *metrics.Stats `json:"metrics"`
}

func newStatusCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the deck service and the card cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			report := statusReport{
				Version:     cmd.Root().Version,
				BackendURL:  c.cfg.Backend.BaseURL,
				CardsURL:    c.cfg.Cards.BaseURL,
				ClientID:    c.cfg.Backend.ClientID,
				DeckService: "ok",
			}

			decks, err := svc.backend.ListDecks(ctx)
			if err != nil {
				report.DeckService = err.Error()
			}
			report.Decks = len(decks)

			if svc.cardStore != nil {
				report.CacheDB, _ = c.cfg.DatabasePath()
				n, err := svc.cardStore.Count(ctx)
				if err != nil {
					c.logger.Warn("Failed to count cached cards", zap.Error(err))
				}
				report.CachedCards = n
			}
			report.Metrics = svc.metrics.GetStats()

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			displayStatus(cmd.OutOrStdout(), &report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func displayStatus(w io.Writer, r *statusReport) {
	fmt.Fprintln(w, "deckbuilder status")
	fmt.Fprintln(w, "==================")
	fmt.Fprintf(w, "Version:      %s\n", r.Version)
	fmt.Fprintf(w, "Deck service: %s (%s)\n", r.BackendURL, r.DeckService)
	fmt.Fprintf(w, "Decks:        %d\n", r.Decks)
	fmt.Fprintf(w, "Card API:     %s\n", r.CardsURL)
	fmt.Fprintf(w, "Client ID:    %s\n", r.ClientID)
	if r.CacheDB != "" {
		fmt.Fprintf(w, "Card cache:   %s (%d cards)\n", r.CacheDB, r.CachedCards)
	} else {
		fmt.Fprintln(w, "Card cache:   disabled")
	}

	if r.Metrics == nil || len(r.Metrics.Operations) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Requests:")
	for _, op := range r.Metrics.Operations {
		fmt.Fprintf(w, "  %-24s %4d requests  %3d errors\n", op.Operation, op.Requests, op.Errors)
	}
}

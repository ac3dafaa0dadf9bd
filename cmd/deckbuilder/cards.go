package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-builder/internal/cardlookup"
	"github.com/ramonehamilton/commander-builder/internal/cards"
)

func newCardsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Look up cards",
	}
	cmd.AddCommand(newCardsSearchCmd(c), newCardsGetCmd(c))
	return cmd
}

func newCardsSearchCmd(c *cli) *cobra.Command {
	var (
		page   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cards by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			result, err := svc.cards.Search(ctx, strings.Join(args, " "), page)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			displaySearchResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCardsGetCmd(c *cli) *cobra.Command {
	var (
		byID   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "get <card name>",
		Short: "Show one card",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			card, err := lookupCard(ctx, svc, strings.Join(args, " "), byID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), card)
			}
			displayCard(cmd.OutOrStdout(), card)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "Treat the argument as a card id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func displaySearchResult(w io.Writer, result *cardlookup.SearchResult) {
	if len(result.Cards) == 0 {
		fmt.Fprintln(w, "No cards found.")
		return
	}
	first := (result.Page-1)*cardlookup.PageSize + 1
	fmt.Fprintf(w, "Showing %d-%d of %d cards\n\n", first, first+len(result.Cards)-1, result.TotalCards)
	for _, card := range result.Cards {
		fmt.Fprintf(w, "  %-40s %-12s %s\n", card.Name, card.ManaCost, card.TypeLine)
	}
	if result.HasMore {
		fmt.Fprintf(w, "\nMore results: --page %d\n", result.Page+1)
	}
}

func displayCard(w io.Writer, card *cards.Card) {
	fmt.Fprintf(w, "%s\n", card.Name)
	fmt.Fprintf(w, "  ID:             %s\n", card.ID)
	fmt.Fprintf(w, "  Type:           %s\n", card.TypeLine)
	if card.ManaCost != "" {
		fmt.Fprintf(w, "  Mana Cost:      %s (%g)\n", card.ManaCost, card.CMC)
	}
	fmt.Fprintf(w, "  Color Identity: %s\n", colorLabel(card.ColorIdentity))
	if card.Price != nil {
		fmt.Fprintf(w, "  Price:          %s\n", *card.Price)
	}
}

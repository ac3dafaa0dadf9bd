package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-builder/internal/cards"
	"github.com/ramonehamilton/commander-builder/internal/charts"
	"github.com/ramonehamilton/commander-builder/internal/deckexport"
	"github.com/ramonehamilton/commander-builder/internal/deckstate"
)

// deckFlags selects the deck a deck subcommand works on.
type deckFlags struct {
	deckID int
}

func newDeckCmd(c *cli) *cobra.Command {
	flags := &deckFlags{}
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "Show and edit one deck",
		Long: `Loads a deck (the first listed deck unless --deck is given, creating one
when there are none) and applies a single change to it.`,
	}
	cmd.PersistentFlags().IntVarP(&flags.deckID, "deck", "d", 0, "Deck id (default: first deck)")

	cmd.AddCommand(
		newDeckShowCmd(c, flags),
		newDeckAddCmd(c, flags),
		newDeckRemoveCmd(c, flags),
		newDeckCommanderCmd(c, flags),
		newDeckCheckCmd(c, flags),
		newDeckStatsCmd(c, flags),
		newDeckChartCmd(c, flags),
	)
	return cmd
}

// withDeck loads the selected deck and runs fn against the manager.
func (c *cli) withDeck(cmd *cobra.Command, flags *deckFlags, fn func(ctx context.Context, svc *services) error) error {
	svc, err := c.services()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := c.commandContext(cmd)
	defer cancel()

	if err := svc.manager.Initialize(ctx, flags.deckID); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func newDeckShowCmd(c *cli, flags *deckFlags) *cobra.Command {
	var (
		format string
		stats  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeck(cmd, flags, func(ctx context.Context, svc *services) error {
				state := svc.manager.State()
				out := cmd.OutOrStdout()
				switch {
				case asJSON:
					return writeJSON(out, state)
				case format != "":
					export, err := deckexport.Export(state, &deckexport.Options{
						Format:       deckexport.Format(strings.ToLower(format)),
						IncludeStats: stats,
					})
					if err != nil {
						return err
					}
					_, err = io.WriteString(out, export.Content)
					return err
				default:
					displayDeckState(out, state)
					return nil
				}
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format: txt, arena, plaintext, csv")
	cmd.Flags().BoolVar(&stats, "stats", false, "Append card count and average mana value")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the deck state as JSON")
	return cmd
}

func newDeckAddCmd(c *cli, flags *deckFlags) *cobra.Command {
	var (
		quantity int
		byID     bool
	)
	cmd := &cobra.Command{
		Use:   "add <card name>",
		Short: "Add copies of a card",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.Join(args, " ")
			return c.withDeck(cmd, flags, func(ctx context.Context, svc *services) error {
				if byID {
					card, err := svc.cards.GetByID(ctx, ref)
					if err != nil {
						return err
					}
					if err := svc.manager.AddCard(ctx, card, quantity); err != nil {
						return err
					}
				} else if err := svc.manager.AddCardByName(ctx, ref, quantity); err != nil {
					return err
				}
				state := svc.manager.State()
				fmt.Fprintf(cmd.OutOrStdout(), "Added %dx %s to %s (%d cards)\n", max(quantity, 1), ref, state.DeckName, state.TotalCards())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "Copies to add")
	cmd.Flags().BoolVar(&byID, "id", false, "Treat the argument as a card id")
	return cmd
}

func newDeckRemoveCmd(c *cli, flags *deckFlags) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "remove [card name or id]",
		Short: "Remove one copy of a card",
		Long: `Removes one copy of a card, by name or id, or of the entry at --index as
numbered by "deck show". Removing the commander clears it.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.Join(args, " ")
			indexSet := cmd.Flags().Changed("index")
			if ref == "" && !indexSet {
				return fmt.Errorf("give a card name, a card id or --index")
			}
			return c.withDeck(cmd, flags, func(ctx context.Context, svc *services) error {
				state := svc.manager.State()
				label := ref
				if indexSet {
					// "deck show" numbers entries from 1.
					if index < 1 || index > len(state.Entries) {
						return fmt.Errorf("%w: %d", deckstate.ErrInvalidIndex, index)
					}
					label = state.Entries[index-1].CardName
					if err := svc.manager.RemoveEntry(ctx, index-1); err != nil {
						return err
					}
				} else {
					cardID, ok := findCardID(state, ref)
					if !ok {
						return fmt.Errorf("%w: %s", deckstate.ErrCardNotInDeck, ref)
					}
					if err := svc.manager.RemoveCardByID(ctx, cardID); err != nil {
						return err
					}
				}
				after := svc.manager.State()
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s (%d cards)\n", label, after.DeckName, after.TotalCards())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, `Entry number from "deck show"`)
	return cmd
}

func newDeckCommanderCmd(c *cli, flags *deckFlags) *cobra.Command {
	var byID bool
	cmd := &cobra.Command{
		Use:   "commander <card name>",
		Short: "Set the deck's commander",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.Join(args, " ")
			return c.withDeck(cmd, flags, func(ctx context.Context, svc *services) error {
				card, err := lookupCard(ctx, svc, ref, byID)
				if err != nil {
					return err
				}
				if err := svc.manager.SetCommander(ctx, card.ID); err != nil {
					return err
				}
				state := svc.manager.State()
				fmt.Fprintf(cmd.OutOrStdout(), "%s now leads %s\n", card.Name, state.DeckName)
				if n := countIncompatible(state); n > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%d cards are outside the commander's color identity\n", n)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "Treat the argument as a card id")
	return cmd
}

func newDeckCheckCmd(c *cli, flags *deckFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <card name>",
		Short: "Check a card against the commander's color identity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.Join(args, " ")
			return c.withDeck(cmd, flags, func(ctx context.Context, svc *services) error {
				card, err := svc.cards.GetByName(ctx, ref)
				if err != nil {
					return err
				}
				state := svc.manager.State()
				out := cmd.OutOrStdout()
				if state.Commander == nil || state.Commander.Card == nil {
					fmt.Fprintf(out, "%s has no commander; any card fits\n", state.DeckName)
					return nil
				}
				verdict := "fits"
				if !cards.IsCompatibleWithCommander(card, state.Commander.Card) {
					verdict = "does not fit"
				}
				fmt.Fprintf(out, "%s %s %s's color identity (%s)\n", card.Name, verdict,
					state.Commander.Card.Name, colorLabel(state.Commander.Card.ColorIdentity))
				return nil
			})
		},
	}
}

func newDeckStatsCmd(c *cli, flags *deckFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the mana curve, colors and card types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeck(cmd, flags, func(ctx context.Context, svc *services) error {
				stats := charts.ComputeStats(svc.manager.State())
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				displayDeckStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newDeckChartCmd(c *cli, flags *deckFlags) *cobra.Command {
	var (
		output string
		open   bool
	)
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render deck charts to an HTML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeck(cmd, flags, func(ctx context.Context, svc *services) error {
				stats := charts.ComputeStats(svc.manager.State())
				path := output
				if path == "" {
					path = filepath.Join(os.TempDir(), fmt.Sprintf("deck-%d-charts.html", svc.manager.State().DeckID))
				}
				if err := charts.RenderDeckStatsFile(stats, charts.DefaultChartConfig(), path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s\n", path)
				if open {
					return charts.OpenInBrowser(path)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output HTML file (default: temp dir)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the chart in the browser")
	return cmd
}

// lookupCard resolves ref by id or by name.
func lookupCard(ctx context.Context, svc *services, ref string, byID bool) (*cards.Card, error) {
	if byID {
		return svc.cards.GetByID(ctx, ref)
	}
	return svc.cards.GetByName(ctx, ref)
}

// findCardID matches ref against the commander and entries by id, then by
// case-insensitive name.
func findCardID(state deckstate.State, ref string) (string, bool) {
	candidates := make([]*deckstate.Entry, 0, len(state.Entries)+1)
	if state.Commander != nil {
		candidates = append(candidates, state.Commander)
	}
	for i := range state.Entries {
		candidates = append(candidates, &state.Entries[i])
	}

	for _, e := range candidates {
		if id := e.ID(); id != "" && id == ref {
			return id, true
		}
	}
	for _, e := range candidates {
		if strings.EqualFold(e.CardName, ref) && e.ID() != "" {
			return e.ID(), true
		}
	}
	return "", false
}

func countIncompatible(state deckstate.State) int {
	if state.Commander == nil || state.Commander.Card == nil {
		return 0
	}
	n := 0
	for i := range state.Entries {
		if card := state.Entries[i].Card; card != nil && !cards.IsCompatibleWithCommander(card, state.Commander.Card) {
			n++
		}
	}
	return n
}

func displayDeckState(w io.Writer, state deckstate.State) {
	fmt.Fprintf(w, "Deck: %s (#%d)\n", state.DeckName, state.DeckID)
	if state.Commander != nil {
		fmt.Fprintf(w, "Commander: %s\n", state.Commander.CardName)
	} else {
		fmt.Fprintln(w, "Commander: none")
	}
	fmt.Fprintf(w, "Cards: %d\n", state.TotalCards())
	if state.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", state.LastError)
	}
	fmt.Fprintln(w)

	if len(state.Entries) == 0 {
		fmt.Fprintln(w, "No cards yet.")
		return
	}
	for i := range state.Entries {
		e := &state.Entries[i]
		fmt.Fprintf(w, "  %3d. %dx %s", i+1, e.Quantity, e.CardName)
		switch {
		case e.Resolving:
			fmt.Fprint(w, " (resolving)")
		case e.ResolutionError != "":
			fmt.Fprintf(w, " (unresolved: %s)", e.ResolutionError)
		case e.Card != nil && e.Card.ManaCost != "":
			fmt.Fprintf(w, "  %s", e.Card.ManaCost)
		}
		fmt.Fprintln(w)
	}
}

func displayDeckStats(w io.Writer, stats *charts.DeckStats) {
	fmt.Fprintf(w, "Deck Statistics: %s\n", stats.DeckName)
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Total Cards: %d\n", stats.TotalCards)
	if stats.Unresolved > 0 {
		fmt.Fprintf(w, "Unresolved:  %d\n", stats.Unresolved)
	}
	fmt.Fprintf(w, "Average Mana Value: %.2f\n", stats.AverageManaValue)

	sections := []struct {
		title  string
		points []charts.DataPoint
	}{
		{"Mana Curve", stats.ManaCurve},
		{"Colors", stats.Colors},
		{"Card Types", stats.Types},
	}
	for _, section := range sections {
		fmt.Fprintf(w, "\n%s:\n", section.title)
		for _, p := range section.points {
			fmt.Fprintf(w, "  %-12s %3s %s\n", p.Label, strconv.Itoa(int(p.Value)), strings.Repeat("#", int(p.Value)))
		}
	}
}

func colorLabel(identity []string) string {
	if len(identity) == 0 {
		return "colorless"
	}
	return cards.JoinColors(identity)
}

package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-builder/internal/cards"
)

func newCommandersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commanders",
		Short: "Browse popular commanders and their staples",
	}
	cmd.AddCommand(newCommandersTopCmd(c), newCommandersMetaCmd(c))
	return cmd
}

func newCommandersTopCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the most played commanders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			top, err := svc.meta.TopCommanders(ctx)
			if err != nil {
				return err
			}
			if limit > 0 && len(top) > limit {
				top = top[:limit]
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), top)
			}
			displayCardList(cmd.OutOrStdout(), "Top Commanders", top)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum commanders to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCommandersMetaCmd(c *cli) *cobra.Command {
	var (
		category string
		all      bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "meta <commander name>",
		Short: "Show the cards most played with a commander",
		Long: `Without flags, lists the categories available for the commander.
--category prints one category and --all prints every category.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commander := strings.Join(args, " ")

			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			switch {
			case category != "":
				found, err := svc.meta.CardsByCategory(ctx, commander, category)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, found)
				}
				displayCardList(out, fmt.Sprintf("%s: %s", commander, category), found)
			case all:
				byCategory, err := svc.meta.AllMetaCards(ctx, commander)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, byCategory)
				}
				names := make([]string, 0, len(byCategory))
				for name := range byCategory {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					displayCardList(out, fmt.Sprintf("%s: %s", commander, name), byCategory[name])
					fmt.Fprintln(out)
				}
			default:
				categories, err := svc.meta.AvailableCategories(ctx, commander)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, categories)
				}
				fmt.Fprintf(out, "Categories for %s:\n", commander)
				for _, name := range categories {
					fmt.Fprintf(out, "  %s\n", name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category to show")
	cmd.Flags().BoolVar(&all, "all", false, "Show every category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.MarkFlagsMutuallyExclusive("category", "all")
	return cmd
}

func displayCardList(w io.Writer, title string, list []*cards.Card) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	if len(list) == 0 {
		fmt.Fprintln(w, "No cards found.")
		return
	}
	for i, card := range list {
		fmt.Fprintf(w, "  %2d. %-40s %s\n", i+1, card.Name, colorLabel(card.ColorIdentity))
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-builder/internal/backend"
	"github.com/ramonehamilton/commander-builder/internal/deckimport"
)

func newDecksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decks",
		Short: "List and manage saved decks",
	}
	cmd.AddCommand(
		newDecksListCmd(c),
		newDecksCreateCmd(c),
		newDecksDeleteCmd(c),
		newDecksRenameCmd(c),
		newDecksCopyCmd(c),
		newDecksExportCmd(c),
		newDecksImportCmd(c),
	)
	return cmd
}

func newDecksListCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List decks with their commanders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			summaries, err := svc.backend.ListDeckSummaries(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}
			displayDeckList(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newDecksCreateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create an empty deck",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := c.cfg.App.DefaultDeckName
			if len(args) == 1 {
				name = args[0]
			}
			name, err := deckName(name)
			if err != nil {
				return err
			}

			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			deck, err := svc.backend.CreateDeck(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created deck %d: %s\n", deck.ID, deck.Name)
			return nil
		},
	}
}

func newDecksDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <deck-id>",
		Short: "Delete a deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deckID, err := parseDeckID(args[0])
			if err != nil {
				return err
			}

			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			if err := svc.backend.DeleteDeck(ctx, deckID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted deck %d\n", deckID)
			return nil
		},
	}
}

func newDecksRenameCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <deck-id> <name>",
		Short: "Rename a deck",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deckID, err := parseDeckID(args[0])
			if err != nil {
				return err
			}
			name, err := deckName(args[1])
			if err != nil {
				return err
			}

			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			deck, err := svc.backend.RenameDeck(ctx, deckID, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed deck %d to %s\n", deck.ID, deck.Name)
			return nil
		},
	}
}

func newDecksCopyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <deck-id> <name>",
		Short: "Copy a deck under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deckID, err := parseDeckID(args[0])
			if err != nil {
				return err
			}
			name, err := deckName(args[1])
			if err != nil {
				return err
			}

			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			deck, err := svc.backend.CopyDeck(ctx, deckID, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied deck %d to %d: %s\n", deckID, deck.ID, deck.Name)
			return nil
		},
	}
}

func newDecksExportCmd(c *cli) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <deck-id>",
		Short: "Export a deck through the deck service (txt, csv or json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deckID, err := parseDeckID(args[0])
			if err != nil {
				return err
			}
			exportFormat := backend.ExportFormat(strings.ToLower(format))
			if !exportFormat.Valid() {
				return fmt.Errorf("unsupported export format %q (use txt, csv or json)", format)
			}

			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			file, err := svc.backend.ExportDeck(ctx, deckID, exportFormat)
			if err != nil {
				return err
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(file.Data)
				return err
			}
			if output == "." {
				output = file.Filename
			}
			if err := os.WriteFile(output, file.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported deck %d to %s\n", deckID, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(backend.ExportTxt), "Export format: txt, csv, json")
	cmd.Flags().StringVarP(&output, "output", "o", "", `Output file ("." uses the service's filename; default stdout)`)
	return cmd
}

func newDecksImportCmd(c *cli) *cobra.Command {
	var (
		format string
		name   string
		load   bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a deck list from a txt or csv file",
		Long: `Validates the file locally, then uploads it as a new deck.

` + deckimport.TextHint + `

` + deckimport.CSVHint,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			importFormat, ok := deckimport.FormatFromFilename(path)
			if format != "" {
				importFormat, ok = backend.ImportFormat(strings.ToLower(format)), true
			}
			if !ok || !importFormat.Valid() {
				return fmt.Errorf("cannot tell the format of %s; pass --format txt or --format csv", path)
			}
			if name == "" {
				name = deckimport.NameFromFilename(path)
			}
			title, err := deckName(name)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read deck file: %w", err)
			}
			parsed, err := deckimport.Parse(importFormat, data)
			if err != nil {
				var formatErr *deckimport.FormatError
				if errors.As(err, &formatErr) {
					return fmt.Errorf("%w\n\n%s", err, formatErr.Hint())
				}
				return err
			}
			for _, warning := range parsed.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", warning)
			}
			content, err := parsed.Encode(importFormat)
			if err != nil {
				return err
			}

			svc, err := c.services()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			deck, err := svc.backend.ImportDeck(ctx, importFormat, title, content)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d cards into deck %d: %s\n", parsed.TotalCards(), deck.ID, deck.Name)
			if commander := parsed.Commander(); commander != nil {
				fmt.Fprintf(out, "Commander: %s\n", commander.Name)
			}

			if load {
				if err := svc.manager.Initialize(ctx, deck.ID); err != nil {
					return err
				}
				displayDeckState(out, svc.manager.State())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "File format: txt or csv (default from extension)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Deck name (default from file name)")
	cmd.Flags().BoolVar(&load, "show", false, "Print the imported deck")
	return cmd
}

func parseDeckID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid deck id %q", s)
	}
	return id, nil
}

func deckName(s string) (string, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", fmt.Errorf("deck name cannot be empty")
	}
	return name, nil
}

func displayDeckList(w io.Writer, decks []backend.DeckSummary) {
	if len(decks) == 0 {
		fmt.Fprintln(w, "No saved decks found.")
		return
	}

	fmt.Fprintln(w, "Decks")
	fmt.Fprintln(w, "=====")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Decks: %d\n\n", len(decks))
	for _, deck := range decks {
		fmt.Fprintf(w, "  %4d  %s", deck.ID, deck.Name)
		if deck.Commander != nil {
			fmt.Fprintf(w, " (%s)", deck.Commander.Name)
		}
		if deck.LastUpdate != "" {
			fmt.Fprintf(w, "  [updated %s]", deck.LastUpdate)
		}
		fmt.Fprintln(w)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/commander-builder/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skips config loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "deckbuilder %s\n", version.GetVersion())
		},
	}
}

// Command deckbuilder manages Commander decks against the deck service. It
// runs the local REST/WebSocket API used by the deck editor and offers the
// same deck operations from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ramonehamilton/commander-builder/internal/config"
	"github.com/ramonehamilton/commander-builder/internal/logging"
	"github.com/ramonehamilton/commander-builder/internal/version"
)

// cli holds the global flags and the state PersistentPreRunE prepares.
type cli struct {
	configPath string
	envFiles   []string
	verbose    bool
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger

	// newLogger is replaced in tests.
	newLogger func(debug bool) (*zap.Logger, error)
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&cli{newLogger: logging.New})
}

func newRootCmdFor(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deckbuilder",
		Short: "Commander deck builder",
		Long: `deckbuilder keeps a Commander deck in sync with the deck service.

Run "deckbuilder serve" to start the local API for the deck editor, or use
the deck, decks, cards and commanders commands directly.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (default: ~/.commander-builder/config.toml)")
	rootCmd.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "Extra .env files to load")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "Timeout for one-shot commands")

	rootCmd.AddCommand(
		newServeCmd(c),
		newDecksCmd(c),
		newDeckCmd(c),
		newCardsCmd(c),
		newCommandersCmd(c),
		newStatusCmd(c),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the configuration and builds the logger.
func (c *cli) setup() error {
	if err := config.LoadDotEnv(c.envFiles...); err != nil {
		return err
	}

	path, err := c.resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := c.newLogger(c.verbose || cfg.App.DebugMode)
	if err != nil {
		return err
	}

	if cfg.EnsureClientID() {
		if err := cfg.SaveFile(path); err != nil {
			logger.Warn("Failed to persist client id", zap.String("path", path), zap.Error(err))
		}
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}

func (c *cli) resolveConfigPath() (string, error) {
	if c.configPath != "" {
		return c.configPath, nil
	}
	return config.DefaultPath()
}

// commandContext bounds a one-shot command by --timeout and cancels it on
// SIGINT or SIGTERM.
func (c *cli) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if c.timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

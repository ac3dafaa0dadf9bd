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

	"github.com/ramonehamilton/commander-builder/internal/api"
	"github.com/ramonehamilton/commander-builder/internal/config"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var (
		port   int
		deckID int
		noLoad bool
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local REST and WebSocket API",
		Long: `Starts the API the deck editor talks to. The first deck the service
lists is loaded unless --deck or --no-load is given. Edits to the config file
update the deck service credentials without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				c.cfg.Server.Port = port
			}
			return c.serve(cmd, deckID, !noLoad, watch)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "API server port (default from config)")
	cmd.Flags().IntVar(&deckID, "deck", 0, "Deck to load at startup")
	cmd.Flags().BoolVar(&noLoad, "no-load", false, "Start without loading a deck")
	cmd.Flags().BoolVar(&watch, "watch-config", true, "Reload credentials when the config file changes")
	return cmd
}

func (c *cli) serve(cmd *cobra.Command, deckID int, load, watch bool) error {
	svc, err := c.services()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(&api.Config{
		Port:           c.cfg.Server.Port,
		AllowedOrigins: c.cfg.Server.AllowedOrigins,
	}, api.Dependencies{
		Manager:    svc.manager,
		Decks:      svc.backend,
		Cards:      svc.cards,
		Meta:       svc.meta,
		Metrics:    svc.metrics,
		Dispatcher: svc.dispatcher,
		Logger:     c.logger,
	})
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	if watch {
		if stopWatch := c.watchConfig(ctx, svc); stopWatch != nil {
			defer stopWatch()
		}
	}

	if load || deckID > 0 {
		if err := svc.manager.Initialize(ctx, deckID); err != nil {
			// The editor can still pick a deck; keep serving.
			c.logger.Warn("Initial deck load failed", zap.Int("deck_id", deckID), zap.Error(err))
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API server running at http://localhost:%d\n", c.cfg.Server.Port)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	<-ctx.Done()
	fmt.Fprintln(out, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Fprintln(out, "API server stopped.")
	return nil
}

// watchConfig pushes credential changes from the config file into the deck
// service client. It returns nil when the file cannot be watched.
func (c *cli) watchConfig(ctx context.Context, svc *services) func() {
	path, err := c.resolveConfigPath()
	if err != nil {
		c.logger.Warn("Config watch disabled", zap.Error(err))
		return nil
	}

	watcher, err := config.NewWatcher(path, func(next *config.Config) {
		next.ApplyEnv()
		svc.backend.SetCredentials(next.Backend.APIKey, next.Backend.ClientID)
		c.logger.Info("Deck service credentials reloaded")
	}, c.logger)
	if err != nil {
		c.logger.Warn("Config watch disabled", zap.String("path", path), zap.Error(err))
		return nil
	}

	go watcher.Run(ctx)
	return func() { _ = watcher.Close() }
}

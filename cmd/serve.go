package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"castgrab/internal/auth"
	"castgrab/internal/config"
	"castgrab/internal/extract"
	"castgrab/internal/server"
)

var (
	flagAddr   string
	flagNoAuth bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP extraction endpoint for the portal",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&flagNoAuth, "no-auth", false, "Serve without bearer-token authentication")
}

func serveRun(cmd *cobra.Command, args []string) error {
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if flagNoAuth {
		cfg.Auth.Enabled = false
	}

	ctx, stop := signal.NotifyContext(backgroundContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var users server.Authenticator
	if cfg.Auth.Enabled {
		store, err := openUserStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		users = store
	} else {
		logger.Warn().Msg("authentication disabled; the endpoint is open to anyone who can reach it")
	}

	ex := extract.New(cfg, logger)
	srv := server.New(cfg.Server, ex, users, logger)

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Bool("auth", cfg.Auth.Enabled).
		Bool("render", cfg.Render.Enabled).
		Int("render_slots", cfg.Render.MaxConcurrent).
		Msg("starting castgrab")

	return srv.ListenAndServe(ctx)
}

// openUserStore opens the configured user database.
func openUserStore(c *config.Config) (*auth.Store, error) {
	path, err := c.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("resolving user database: %w", err)
	}
	store, err := auth.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening user database: %w", err)
	}
	return store, nil
}

// backgroundContext returns the command context, or Background when the
// command was run without one.
func backgroundContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"castgrab/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig   string
	flagDebug    bool
	flagNoRender bool
	flagBrowser  string
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

// logger is configured from cfg.Log once flags are parsed.
var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "castgrab",
	Short: "Extract direct MP3 URLs from Zencastr episode pages",
	Long: `castgrab finds the audio file behind a Zencastr episode page.
It reads the page's embedded Next.js data, first from the plain HTML and,
when the page is rendered client-side, from a headless Chromium.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: $XDG_CONFIG_HOME/castgrab/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoRender, "no-render", false, "Never fall back to the headless browser")
	rootCmd.PersistentFlags().StringVar(&flagBrowser, "browser", "", "Chromium executable for rendered extraction")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig, true)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagDebug {
		cfg.Log.Level = "debug"
	}
	if flagNoRender {
		cfg.Render.Enabled = false
	}
	if flagBrowser != "" {
		cfg.Render.BrowserBin = flagBrowser
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = newLogger(os.Stderr, cfg.Log)
	logger.Debug().Str("config", flagConfig).Msg("configuration loaded")
	return nil
}

// newLogger builds the process logger: human-readable console output by
// default, JSON lines when format is "json".
func newLogger(w io.Writer, lc config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	out := w
	if !strings.EqualFold(lc.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"castgrab/internal/extract"
	"castgrab/internal/media"
	"castgrab/internal/server"
	"castgrab/internal/ui"
)

var (
	flagJSON       bool
	flagStaticOnly bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <episode-url>",
	Short: "Extract the MP3 URL from one episode page",
	Args:  cobra.ExactArgs(1),
	RunE:  extractRun,
}

func init() {
	extractCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Print the endpoint's JSON response")
	extractCmd.Flags().BoolVar(&flagStaticOnly, "static-only", false, "Skip the headless browser fallback")
}

// errExtractionFailed makes the process exit non-zero after the failure has
// already been printed.
var errExtractionFailed = errors.New("extraction failed")

func extractRun(cmd *cobra.Command, args []string) error {
	if flagStaticOnly {
		cfg.Render.Enabled = false
	}

	ctx, stop := signal.NotifyContext(backgroundContext(cmd), os.Interrupt)
	defer stop()

	ex := extract.New(cfg, logger)
	url := strings.TrimSpace(args[0])

	var res media.Result
	if !flagJSON && ui.IsTerminal(os.Stdout) {
		var err error
		res, err = ui.RunWithSpinner(ctx, os.Stderr, "Extracting audio URL…", func(ctx context.Context) media.Result {
			return ex.Extract(ctx, url)
		})
		if err != nil {
			return err
		}
	} else {
		res = ex.Extract(ctx, url)
	}
	logger.Debug().
		Str("strategy", string(res.Strategy())).
		Str("kind", res.Kind().String()).
		Str("reason", res.Reason()).
		Msg("extraction finished")

	// JSON output mode
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(server.ResponseFor(res)); err != nil {
			return err
		}
	} else if ui.IsTerminal(os.Stdout) {
		fmt.Print(ui.FormatResult(res))
	} else if res.OK() {
		fmt.Println(res.AudioURL())
	} else {
		fmt.Fprintf(os.Stderr, "%s: %s\n", res.Kind().UserMessage(), res.Reason())
	}

	if !res.OK() {
		cmd.SilenceErrors = true
		return errExtractionFailed
	}
	return nil
}

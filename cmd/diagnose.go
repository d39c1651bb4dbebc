package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"castgrab/internal/config"
	"castgrab/internal/extract"
	"castgrab/internal/ui"
)

var flagProbeURL string

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Check the extractor's configuration, browser and user store",
	Args:  cobra.NoArgs,
	RunE:  diagnoseRun,
}

func init() {
	diagnoseCmd.Flags().StringVar(&flagProbeURL, "url", "", "Also run a full extraction against this episode URL")
}

var errDiagnoseIssues = errors.New("diagnose found issues")

func diagnoseRun(cmd *cobra.Command, args []string) error {
	d := &diagnosis{out: cmd.OutOrStdout(), cfg: cfg}
	d.run(backgroundContext(cmd), flagProbeURL)
	if d.issues > 0 {
		cmd.SilenceErrors = true
		return errDiagnoseIssues
	}
	return nil
}

// diagnosis prints one line per check and tallies problems.
type diagnosis struct {
	out      io.Writer
	cfg      *config.Config
	issues   int
	warnings int

	// probe overrides the real browser launch in tests.
	probe func(ctx context.Context, opts extract.RenderOptions) (string, error)
}

func (d *diagnosis) ok(format string, a ...any) {
	fmt.Fprintln(d.out, "   "+ui.CheckLine(ui.LevelOK, fmt.Sprintf(format, a...)))
}

func (d *diagnosis) warn(format string, a ...any) {
	d.warnings++
	fmt.Fprintln(d.out, "   "+ui.CheckLine(ui.LevelWarn, fmt.Sprintf(format, a...)))
}

func (d *diagnosis) fail(format string, a ...any) {
	d.issues++
	fmt.Fprintln(d.out, "   "+ui.CheckLine(ui.LevelFail, fmt.Sprintf(format, a...)))
}

func (d *diagnosis) section(n int, title string) {
	fmt.Fprintf(d.out, "\n%s\n", ui.Heading(fmt.Sprintf("%d. %s", n, title)))
}

func (d *diagnosis) run(ctx context.Context, probeURL string) {
	fmt.Fprintln(d.out, ui.Heading("Diagnosing castgrab setup..."))

	d.section(1, "Configuration")
	d.checkConfig()

	d.section(2, "Headless browser")
	d.checkBrowser(ctx)

	d.section(3, "Temporary storage")
	d.checkTempDir()

	d.section(4, "User store")
	d.checkUserStore(ctx)

	if probeURL != "" {
		d.section(5, "Live extraction")
		d.checkExtraction(ctx, probeURL)
	}

	fmt.Fprintln(d.out)
	switch {
	case d.issues == 0 && d.warnings == 0:
		fmt.Fprintln(d.out, ui.CheckLine(ui.LevelOK, "All checks passed. MP3 extraction should work."))
	case d.issues == 0:
		fmt.Fprintln(d.out, ui.CheckLine(ui.LevelWarn, fmt.Sprintf("%d warning(s), no critical issues.", d.warnings)))
	default:
		fmt.Fprintln(d.out, ui.CheckLine(ui.LevelFail, fmt.Sprintf("%d critical issue(s), %d warning(s).", d.issues, d.warnings)))
	}
}

func (d *diagnosis) checkConfig() {
	if path, err := config.ConfigPath(); err == nil {
		if flagConfig != "" {
			path = flagConfig
		}
		if _, statErr := os.Stat(path); statErr == nil {
			d.ok("Config file: %s", path)
		} else {
			d.ok("No config file at %s, using defaults", path)
		}
	}
	if err := d.cfg.Validate(); err != nil {
		d.fail("Configuration invalid: %v", err)
		return
	}
	d.ok("Configuration valid")
	fmt.Fprintln(d.out, "   "+ui.Dim(fmt.Sprintf("fetch timeout %s, navigation timeout %s, element timeout %s",
		d.cfg.Fetch.Timeout, d.cfg.Render.NavigationTimeout, d.cfg.Render.ElementTimeout)))
}

func (d *diagnosis) renderOptions() extract.RenderOptions {
	return extract.RenderOptions{
		BrowserBin:        d.cfg.Render.BrowserBin,
		UserAgent:         d.cfg.Fetch.UserAgent,
		MaxConcurrent:     d.cfg.Render.MaxConcurrent,
		NavigationTimeout: d.cfg.Render.NavigationTimeout.Duration,
		ElementTimeout:    d.cfg.Render.ElementTimeout.Duration,
		IdleWindow:        d.cfg.Render.IdleWindow.Duration,
	}
}

func (d *diagnosis) checkBrowser(ctx context.Context) {
	if !d.cfg.Render.Enabled {
		d.warn("Rendered extraction disabled; client-rendered pages will fail")
		return
	}

	bin, err := extract.ResolveBrowser(d.cfg.Render.BrowserBin)
	if err != nil {
		d.fail("Chromium NOT found: %v", err)
		return
	}
	info, err := os.Stat(bin)
	switch {
	case err != nil:
		d.fail("Chromium NOT found at %s", bin)
		return
	case info.Mode()&0111 == 0:
		d.fail("Chromium at %s is NOT executable", bin)
		return
	}
	d.ok("Chromium found at: %s", bin)

	probe := d.probe
	if probe == nil {
		probe = extract.ProbeBrowser
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Render.NavigationTimeout.Duration)
	defer cancel()

	start := time.Now()
	version, err := probe(ctx, d.renderOptions())
	if err != nil {
		d.fail("Browser launch failed: %v", err)
		return
	}
	d.ok("Browser launched and closed in %s (%s)", time.Since(start).Round(time.Millisecond), version)
}

func (d *diagnosis) checkTempDir() {
	dir, err := os.MkdirTemp("", "castgrab-diagnose-*")
	if err != nil {
		d.fail("Cannot create browser profile directory: %v", err)
		return
	}
	os.RemoveAll(dir)
	d.ok("Temporary directory writable: %s", os.TempDir())
}

func (d *diagnosis) checkUserStore(ctx context.Context) {
	if !d.cfg.Auth.Enabled {
		d.warn("Authentication disabled; the endpoint accepts anonymous requests")
		return
	}

	path, err := d.cfg.DatabasePath()
	if err != nil {
		d.fail("Cannot resolve user database: %v", err)
		return
	}
	store, err := openUserStore(d.cfg)
	if err != nil {
		d.fail("User database NOT reachable: %v", err)
		return
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		d.fail("User database NOT reachable: %v", err)
		return
	}
	d.ok("User database: %s", path)

	users, err := store.List(ctx)
	if err != nil {
		d.fail("Cannot read users: %v", err)
		return
	}
	if len(users) == 0 {
		d.warn("No users yet; add one with `castgrab users add`")
		return
	}
	d.ok("%d user(s) registered", len(users))
}

func (d *diagnosis) checkExtraction(ctx context.Context, rawURL string) {
	res := extract.New(d.cfg, logger).Extract(ctx, rawURL)
	if !res.OK() {
		d.fail("Extraction failed via %s: %s", res.Strategy(), res.Reason())
		return
	}
	d.ok("Extracted via %s: %s", res.Strategy(), res.AudioURL())
}

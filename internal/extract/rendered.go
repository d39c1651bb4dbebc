package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"castgrab/internal/httputil"
	"castgrab/internal/media"
)

// closeTimeout bounds each CDP call made while tearing a session down.
const closeTimeout = 5 * time.Second

// RenderOptions configures the headless browser.
type RenderOptions struct {
	// BrowserBin is the Chromium executable. Empty means look it up on PATH
	// and in the usual install locations.
	BrowserBin        string
	UserAgent         string
	MaxConcurrent     int
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	// IdleWindow is how long the network must stay quiet before the page
	// counts as loaded.
	IdleWindow time.Duration
}

// renderSession is one browser instance with a single page open.
type renderSession interface {
	// Navigate loads rawURL and returns once network activity settles.
	Navigate(ctx context.Context, rawURL string) error
	// IslandText waits for the data island element and returns its text.
	IslandText(ctx context.Context) (string, error)
	// Close releases the page, the browser and its process tree.
	Close() error
}

type launchFunc func(ctx context.Context, opts RenderOptions) (renderSession, error)

// Rendered loads the page in headless Chromium so client-side scripts can
// populate the data island. Each call launches its own browser; at most
// MaxConcurrent browsers run at once.
type Rendered struct {
	opts   RenderOptions
	sem    *semaphore.Weighted
	log    zerolog.Logger
	launch launchFunc
}

// NewRendered creates a Rendered extractor backed by go-rod.
func NewRendered(opts RenderOptions, logger zerolog.Logger) *Rendered {
	return newRendered(opts, logger, launchRod)
}

func newRendered(opts RenderOptions, logger zerolog.Logger, launch launchFunc) *Rendered {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = httputil.DefaultUserAgent
	}
	return &Rendered{
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		log:    logger,
		launch: launch,
	}
}

// Extract renders the page and decodes its data island. The browser is
// torn down before Extract returns, whatever the outcome.
func (r *Rendered) Extract(ctx context.Context, rawURL string) (res media.Result) {
	if err := r.acquire(ctx); err != nil {
		return media.Failure(media.Resource, fmt.Sprintf("render slot unavailable: %v", err))
	}
	defer r.sem.Release(1)

	sess, err := r.launch(ctx, r.opts)
	if err != nil {
		return media.Failure(media.Resource, fmt.Sprintf("browser launch error: %v", err))
	}

	// Registered before the close below so it runs after teardown.
	defer func() {
		if p := recover(); p != nil {
			res = media.Failure(media.Resource, fmt.Sprintf("render error: %v", p))
		}
	}()
	defer func() {
		if err := sess.Close(); err != nil {
			r.log.Debug().Err(err).Str("url", rawURL).Msg("closing browser session")
		}
	}()

	if res, ok := r.navigate(ctx, sess, rawURL); !ok {
		return res
	}

	elCtx, cancel := context.WithTimeout(ctx, r.opts.ElementTimeout)
	defer cancel()
	text, err := sess.IslandText(elCtx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return media.Failure(media.Resource, fmt.Sprintf("render cancelled: %v", ctx.Err()))
		case stepExpired(elCtx):
			return media.Failure(media.MissingDataIsland, "data island not found after render")
		default:
			return media.Failure(media.Resource, fmt.Sprintf("render error: %v", err))
		}
	}

	return decodeIsland(text)
}

// acquire waits for a render slot, for at most the navigation timeout.
func (r *Rendered) acquire(ctx context.Context) error {
	if r.opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.NavigationTimeout)
		defer cancel()
	}
	return r.sem.Acquire(ctx, 1)
}

func (r *Rendered) navigate(ctx context.Context, sess renderSession, rawURL string) (media.Result, bool) {
	navCtx, cancel := context.WithTimeout(ctx, r.opts.NavigationTimeout)
	defer cancel()

	err := sess.Navigate(navCtx, rawURL)
	if err == nil {
		return media.Result{}, true
	}
	switch {
	case ctx.Err() != nil:
		return media.Failure(media.Resource, fmt.Sprintf("render cancelled: %v", ctx.Err())), false
	case stepExpired(navCtx):
		return media.Failure(media.RenderTimeout, fmt.Sprintf("navigation error: %v", err)), false
	default:
		return media.Failure(media.Network, fmt.Sprintf("navigation error: %v", err)), false
	}
}

// stepExpired reports whether step's own deadline fired. Must be called
// before step is cancelled.
func stepExpired(step context.Context) bool {
	return errors.Is(step.Err(), context.DeadlineExceeded)
}

// chromiumFlags are passed to every launched browser so it runs inside
// containers without a setuid sandbox, shared memory or a GPU.
var chromiumFlags = []flags.Flag{
	"no-sandbox",
	"disable-setuid-sandbox",
	"disable-dev-shm-usage",
	"disable-accelerated-2d-canvas",
	"no-first-run",
	"no-zygote",
	"disable-gpu",
}

// rodSession drives one Chromium process over CDP.
type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	idle     time.Duration
}

// ResolveBrowser returns the Chromium executable to launch: bin when set,
// otherwise the first browser found on PATH or in the usual install
// locations.
func ResolveBrowser(bin string) (string, error) {
	if bin != "" {
		return bin, nil
	}
	path, ok := launcher.LookPath()
	if !ok {
		return "", errors.New("no chromium binary found")
	}
	return path, nil
}

// ProbeBrowser launches and tears down one browser and reports its version.
func ProbeBrowser(ctx context.Context, opts RenderOptions) (string, error) {
	sess, err := launchRod(ctx, opts)
	if err != nil {
		return "", err
	}
	rs := sess.(*rodSession)
	defer rs.Close()

	v, err := proto.BrowserGetVersion{}.Call(rs.browser)
	if err != nil {
		return "", fmt.Errorf("querying browser version: %w", err)
	}
	return v.Product, nil
}

// launchRod starts Chromium and opens a blank page with the configured
// user agent. Anything started before a failure is torn down again.
func launchRod(ctx context.Context, opts RenderOptions) (renderSession, error) {
	bin, err := ResolveBrowser(opts.BrowserBin)
	if err != nil {
		return nil, err
	}

	l := launcher.New().
		Bin(bin).
		Headless(true)
	for _, f := range chromiumFlags {
		l = l.Set(f)
	}
	l = l.Context(ctx)

	s := &rodSession{launcher: l, idle: opts.IdleWindow}

	controlURL, err := l.Launch()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("launching %s: %w", bin, err)
	}

	// The browser outlives the caller's cancellation long enough to be
	// closed cleanly. Per-call deadlines are applied on the page.
	s.browser = rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		_ = s.Close()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating page: %w", err)
	}
	s.page = page

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      opts.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("setting user agent: %w", err)
	}

	return s, nil
}

func (s *rodSession) Navigate(ctx context.Context, rawURL string) error {
	p := s.page.Context(ctx)
	wait := p.WaitRequestIdle(s.idle, nil, nil, nil)
	if err := p.Navigate(rawURL); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

func (s *rodSession) IslandText(ctx context.Context) (string, error) {
	el, err := s.page.Context(ctx).Element("#" + dataIslandID)
	if err != nil {
		return "", err
	}
	obj, err := el.Eval(`() => this.textContent || ""`)
	if err != nil {
		return "", fmt.Errorf("reading data island: %w", err)
	}
	return obj.Value.Str(), nil
}

// pid returns the browser process id, or 0 before launch.
func (s *rodSession) pid() int {
	return s.launcher.PID()
}

func (s *rodSession) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Timeout(closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing page: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Timeout(closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing browser: %w", err))
		}
	}
	// Kill the process group even after a clean close so renderer
	// children cannot linger, then wait for exit and remove the profile.
	// Cleanup blocks until exit, so it only runs once a process started.
	if s.launcher.PID() != 0 {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return errors.Join(errs...)
}

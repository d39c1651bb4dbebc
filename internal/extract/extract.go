// Package extract resolves episode page URLs into direct audio file URLs.
//
// Two strategies read the page's Next.js data island: Static parses the
// server-rendered HTML, Rendered loads the page in a headless browser. The
// Coordinator tries them in that order.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"castgrab/internal/config"
	"castgrab/internal/httputil"
	"castgrab/internal/media"
)

// Extractor resolves an episode page URL into an audio URL.
// Implementations report every failure through the returned Result.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) media.Result
}

// Coordinator runs the static strategy and falls back to the rendered one.
type Coordinator struct {
	static   Extractor
	rendered Extractor
	log      zerolog.Logger
}

// NewCoordinator composes two strategies. rendered may be nil, in which case
// static failures are final.
func NewCoordinator(static, rendered Extractor, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		static:   static,
		rendered: rendered,
		log:      logger,
	}
}

// New builds the static and rendered strategies from configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Coordinator {
	static := NewStatic(cfg.Fetch.Timeout.Duration, cfg.Fetch.UserAgent)

	var rendered Extractor
	if cfg.Render.Enabled {
		rendered = NewRendered(RenderOptions{
			BrowserBin:        cfg.Render.BrowserBin,
			UserAgent:         cfg.Fetch.UserAgent,
			MaxConcurrent:     cfg.Render.MaxConcurrent,
			NavigationTimeout: cfg.Render.NavigationTimeout.Duration,
			ElementTimeout:    cfg.Render.ElementTimeout.Duration,
			IdleWindow:        cfg.Render.IdleWindow.Duration,
		}, logger)
	}

	return NewCoordinator(static, rendered, logger)
}

// Extract returns the first successful strategy result, or the last failure.
func (c *Coordinator) Extract(ctx context.Context, rawURL string) media.Result {
	log := c.logger(ctx).With().Str("url", rawURL).Logger()

	if err := httputil.ValidateURL(rawURL); err != nil {
		log.Warn().Err(err).Msg("rejecting extraction request")
		return media.Failure(media.InvalidInput, "invalid url")
	}

	res := c.run(ctx, log, media.StrategyStatic, c.static, rawURL)
	if res.OK() || c.rendered == nil {
		return res
	}

	log.Warn().
		Str("kind", res.Kind().String()).
		Str("reason", res.Reason()).
		Msg("static extraction failed, falling back to rendered page")

	return c.run(ctx, log, media.StrategyRendered, c.rendered, rawURL)
}

// run invokes one strategy exactly once and logs its outcome. A panic inside
// the strategy becomes a resource failure.
func (c *Coordinator) run(ctx context.Context, log zerolog.Logger, name media.Strategy, e Extractor, rawURL string) (res media.Result) {
	start := time.Now()
	log.Debug().Str("strategy", string(name)).Msg("running extraction strategy")

	defer func() {
		if p := recover(); p != nil {
			res = media.Failure(media.Resource, fmt.Sprintf("%s extractor crashed: %v", name, p))
		}
		res = res.From(name)

		var ev *zerolog.Event
		if res.OK() {
			ev = log.Info().Str("audio_url", res.AudioURL())
		} else {
			ev = log.Warn().Str("kind", res.Kind().String()).Str("reason", res.Reason())
		}
		ev.Str("strategy", string(name)).
			Dur("elapsed", time.Since(start)).
			Bool("success", res.OK()).
			Msg("extraction strategy finished")
	}()

	return e.Extract(ctx, rawURL)
}

// logger prefers a request-scoped logger carried in ctx.
func (c *Coordinator) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.log
}

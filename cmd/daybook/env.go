package main

import (
	"context"
	"time"

	"github.com/hpungsan/daybook/internal/backfill"
	"github.com/hpungsan/daybook/internal/config"
	"github.com/hpungsan/daybook/internal/gemini"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/scan"
	"github.com/hpungsan/daybook/internal/store"
	"github.com/hpungsan/daybook/internal/summary"
	"github.com/hpungsan/daybook/internal/transcript"
)

// env carries what every command needs to build a monitor. Tests replace
// the generator, clock and sleep.
type env struct {
	cfg   *config.Config
	now   func() time.Time
	gen   summary.TextGenerator
	sleep func(ctx context.Context, d time.Duration) error
}

func newEnv(cfg *config.Config) *env {
	return &env{cfg: cfg, now: time.Now}
}

// generator returns the configured text generator, or nil in local-only mode.
func (e *env) generator() summary.TextGenerator {
	if e.gen != nil {
		return e.gen
	}
	key := config.ResolveAPIKey(e.cfg)
	if key == "" {
		return nil
	}
	return gemini.NewClient(gemini.Options{
		APIKey:          key,
		BaseURL:         e.cfg.Endpoint,
		Model:           e.cfg.Model,
		MaxOutputTokens: e.cfg.MaxOutputTokens,
		Temperature:     e.cfg.Temperature,
	})
}

// open builds the loader and a monitor over it. A live monitor summarizes and
// backfills on its own after every refresh and waits the configured settle
// delay before backfilling.
func (e *env) open(live bool) (*monitor.Monitor, *scan.Loader, error) {
	root, err := config.ResolveSessionsDir(e.cfg)
	if err != nil {
		return nil, nil, err
	}

	loader := scan.NewLoader(scan.Options{
		Root:     root,
		Home:     config.ResolveHomeDir(e.cfg),
		Excluded: e.cfg.ExcludedProjects,
		Filters:  transcript.DefaultFilters().Extend(e.cfg.NoisePhrases, e.cfg.BoringCommands, e.cfg.SourceExtensions),
	})
	summariesDir, err := config.ResolveSummariesDir(e.cfg)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(summariesDir)
	gen := e.generator()

	opts := backfill.Options{
		Generator:     gen,
		Store:         st,
		Interval:      e.cfg.BackfillInterval(),
		RateLimitWait: e.cfg.RateLimitWait(),
		Sleep:         e.sleep,
	}
	if live {
		opts.SettleDelay = e.cfg.BackfillSettle()
	}

	m := monitor.New(monitor.Options{
		Loader:       loader,
		Store:        st,
		Generator:    gen,
		Backfill:     backfill.NewScheduler(opts),
		AutoSummary:  live,
		AutoBackfill: live,
		Debounce:     e.cfg.Debounce(),
		Settle:       e.cfg.Settle(),
		Rescan:       e.cfg.Rescan(),
		Now:          e.now,
	})
	return m, loader, nil
}

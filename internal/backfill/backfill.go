// Package backfill fills in summaries for recent past days that have sessions
// but no stored summary.
package backfill

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/daybook/internal/errors"
	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/store"
	"github.com/hpungsan/daybook/internal/summary"
)

const (
	// MaxAttempts bounds the generation calls made for one day.
	MaxAttempts = 3

	// FingerprintPrefix marks summaries written by a backfill run.
	FingerprintPrefix = "backfill:"

	// WindowDays is how far back backfill looks, today excluded.
	WindowDays = 6
)

// Day outcomes.
const (
	OutcomeGenerated = "generated"
	OutcomeFallback  = "fallback"
	OutcomeLocal     = "local"
)

// Options configures a Scheduler.
type Options struct {
	// Generator is nil when no credential is configured.
	Generator summary.TextGenerator
	Store     *store.Store
	Log       *store.BackfillLog

	SettleDelay   time.Duration
	Interval      time.Duration
	RateLimitWait time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DayResult is the outcome for one day.
type DayResult struct {
	Date     string          `json:"date"`
	Outcome  string          `json:"outcome"`
	Attempts int             `json:"attempts"`
	Summary  summary.Summary `json:"summary"`
	Error    string          `json:"error,omitempty"`
}

// Result is the outcome of one run.
type Result struct {
	RunID string      `json:"run_id"`
	Days  []DayResult `json:"days"`
	Err   error       `json:"-"`
}

// Scheduler generates summaries for missing days, one day at a time.
type Scheduler struct {
	gen           summary.TextGenerator
	store         *store.Store
	log           *store.BackfillLog
	settle        time.Duration
	interval      time.Duration
	rateLimitWait time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		gen:           opts.Generator,
		store:         opts.Store,
		log:           opts.Log,
		settle:        opts.SettleDelay,
		interval:      opts.Interval,
		rateLimitWait: opts.RateLimitWait,
		sleep:         opts.Sleep,
	}
	if s.sleep == nil {
		s.sleep = Sleep
	}
	if s.log == nil && s.store != nil {
		s.log = store.NewBackfillLog(s.store.LogPath())
	}
	return s
}

// Async reports whether runs call the generator and so should not block the caller.
func (s *Scheduler) Async() bool {
	return s.gen != nil
}

// MissingDays returns the days 1..WindowDays back from week that have at
// least one session and no stored summary, oldest first. week[i] is i days
// before today, as produced by stats.Compute.
func MissingDays(week []stats.DayStats, st *store.Store) []stats.DayStats {
	var out []stats.DayStats
	for i := min(WindowDays, len(week)-1); i >= 1; i-- {
		d := week[i]
		if d.TotalSessions == 0 || st.Exists(d.Date) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Start runs Run in the background. The channel receives one Result and is
// then closed.
func (s *Scheduler) Start(ctx context.Context, days []stats.DayStats) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- s.Run(ctx, days)
	}()
	return ch
}

// Run processes days in order. Without a generator every day gets a local
// summary immediately. With one, Run waits the settle delay, then calls the
// generator one day at a time with Interval between days. An HTTP 429 is
// retried after RateLimitWait while attempts remain; any other failure, or
// running out of attempts, stores a local summary instead.
func (s *Scheduler) Run(ctx context.Context, days []stats.DayStats) Result {
	res := Result{RunID: NewID()}
	if len(days) == 0 {
		return res
	}

	mode := "generate"
	if s.gen == nil {
		mode = "local"
	}
	s.append(store.LogEntry{RunID: res.RunID, Result: store.ResultStarted, Detail: fmt.Sprintf("%d days, mode=%s", len(days), mode)})

	if s.gen == nil {
		for _, d := range days {
			res.Days = append(res.Days, s.local(res.RunID, d))
		}
		s.append(store.LogEntry{RunID: res.RunID, Result: store.ResultComplete})
		return res
	}

	if err := s.sleep(ctx, s.settle); err != nil {
		res.Err = err
		return res
	}
	for i, d := range days {
		if i > 0 {
			if err := s.sleep(ctx, s.interval); err != nil {
				res.Err = err
				return res
			}
		}
		dr, err := s.generate(ctx, res.RunID, d)
		if err != nil {
			res.Err = err
			return res
		}
		res.Days = append(res.Days, dr)
	}
	s.append(store.LogEntry{RunID: res.RunID, Result: store.ResultComplete})
	return res
}

// generate runs the attempt loop for one day. It only returns an error when
// ctx is done.
func (s *Scheduler) generate(ctx context.Context, runID string, d stats.DayStats) (DayResult, error) {
	fp := FingerprintPrefix + d.Fingerprint()
	prompt := summary.BuildPrompt(d)
	dr := DayResult{Date: d.Date}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		dr.Attempts = attempt
		entry := store.LogEntry{RunID: runID, Date: d.Date, Attempt: attempt, MaxAttempts: MaxAttempts}

		text, err := s.gen.Generate(ctx, prompt)
		if err == nil {
			dr.Outcome = OutcomeGenerated
			dr.Error = ""
			dr.Summary = summary.ParseReply(text, fp)
			s.save(d.Date, dr.Summary, &dr)
			entry.Result = store.ResultSuccess
			s.append(entry)
			return dr, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dr, ctxErr
		}

		dr.Error = err.Error()
		entry.Status = errors.UpstreamStatus(err)
		if errors.IsRateLimited(err) {
			entry.Result = store.ResultRateLimited
			s.append(entry)
			if attempt < MaxAttempts {
				if err := s.sleep(ctx, s.rateLimitWait); err != nil {
					return dr, err
				}
				continue
			}
			break
		}

		entry.Result = store.ResultFailed
		entry.Detail = err.Error()
		s.append(entry)
		break
	}

	dr.Outcome = OutcomeFallback
	dr.Summary = summary.Local(d)
	dr.Summary.Fingerprint = fp
	s.save(d.Date, dr.Summary, &dr)
	s.append(store.LogEntry{RunID: runID, Date: d.Date, Result: store.ResultFallback})
	return dr, nil
}

func (s *Scheduler) local(runID string, d stats.DayStats) DayResult {
	dr := DayResult{Date: d.Date, Outcome: OutcomeLocal, Summary: summary.Local(d)}
	dr.Summary.Fingerprint = FingerprintPrefix + d.Fingerprint()
	s.save(d.Date, dr.Summary, &dr)
	s.append(store.LogEntry{RunID: runID, Date: d.Date, Result: store.ResultLocal})
	return dr
}

func (s *Scheduler) save(date string, sum summary.Summary, dr *DayResult) {
	if err := s.store.Save(date, sum); err != nil {
		log.Printf("backfill: save %s: %v", date, err)
		dr.Error = err.Error()
	}
}

func (s *Scheduler) append(e store.LogEntry) {
	if s.log == nil {
		return
	}
	if err := s.log.Append(e); err != nil {
		log.Printf("backfill: log: %v", err)
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewID returns a new ULID string for tagging runs and requests.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

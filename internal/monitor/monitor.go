// Package monitor owns the published activity state: it rescans on change
// signals, recomputes statistics and keeps today's summary current.
package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/daybook/internal/backfill"
	"github.com/hpungsan/daybook/internal/scan"
	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/store"
	"github.com/hpungsan/daybook/internal/summary"
)

// State is an immutable snapshot. A new value replaces the old one whole on
// every change; never modify a State obtained from the Monitor.
type State struct {
	Today       stats.DayStats   `json:"today"`
	Week        []stats.DayStats `json:"week"`
	Summary     *summary.Summary `json:"summary"`
	Generating  bool             `json:"generating"`
	Backfilling bool             `json:"backfilling"`
	Error       string           `json:"error,omitempty"`
	History     []string         `json:"history"`
	Report      scan.Report      `json:"report"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Options configures a Monitor.
type Options struct {
	Loader *scan.Loader
	Store  *store.Store

	// Generator is nil in local-only mode.
	Generator summary.TextGenerator

	// Backfill defaults to a scheduler with no delays.
	Backfill *backfill.Scheduler

	// AutoSummary requests today's summary after every refresh.
	AutoSummary bool

	// AutoBackfill starts a backfill once per calendar day after a refresh.
	AutoBackfill bool

	Debounce time.Duration
	Settle   time.Duration
	Rescan   time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Monitor is the single owner of published state. Scans and generation calls
// run off the caller's goroutine and publish results back through it.
type Monitor struct {
	loader    *scan.Loader
	store     *store.Store
	gen       summary.TextGenerator
	scheduler *backfill.Scheduler
	now       func() time.Time

	autoSummary  bool
	autoBackfill bool
	debounce     time.Duration
	settle       time.Duration
	rescan       time.Duration

	state atomic.Pointer[State]
	group singleflight.Group

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	summaryDate  string
	current      *summary.Summary
	pendingID    string
	pendingFP    string
	backfillDate string
	subs         map[chan struct{}]struct{}
}

// New creates a Monitor with an empty state. Call Close to stop background work.
func New(opts Options) *Monitor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sched := opts.Backfill
	if sched == nil {
		sched = backfill.NewScheduler(backfill.Options{Generator: opts.Generator, Store: opts.Store})
	}
	bg, cancel := context.WithCancel(context.Background())

	m := &Monitor{
		loader:       opts.Loader,
		store:        opts.Store,
		gen:          opts.Generator,
		scheduler:    sched,
		now:          now,
		autoSummary:  opts.AutoSummary,
		autoBackfill: opts.AutoBackfill,
		debounce:     opts.Debounce,
		settle:       opts.Settle,
		rescan:       opts.Rescan,
		bg:           bg,
		cancel:       cancel,
		subs:         make(map[chan struct{}]struct{}),
	}
	m.state.Store(&State{History: []string{}})
	return m
}

// State returns the latest snapshot.
func (m *Monitor) State() *State {
	return m.state.Load()
}

// Store returns the summary store.
func (m *Monitor) Store() *store.Store {
	return m.store
}

// Now returns the monitor's clock reading.
func (m *Monitor) Now() time.Time {
	return m.now()
}

// Subscribe returns a channel that receives a signal after each publish.
// Signals coalesce: a slow reader sees one pending signal and should read
// State() for the latest value. Call the returned func to unsubscribe.
func (m *Monitor) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
		})
	}
}

// Wait blocks until background generation and backfill work has finished.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Close cancels background work and waits for it to stop.
func (m *Monitor) Close() {
	m.cancel()
	m.wg.Wait()
}

// publishLocked copies the current state, applies fn and publishes the copy.
// m.mu must be held.
func (m *Monitor) publishLocked(fn func(*State)) {
	next := *m.state.Load()
	fn(&next)
	m.state.Store(&next)
	for ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *Monitor) publish(fn func(*State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(fn)
}

// Refresh scans, recomputes statistics and publishes them. Concurrent calls
// share one scan. Depending on Options it then requests today's summary and
// starts the day's backfill.
func (m *Monitor) Refresh(ctx context.Context) (*State, error) {
	_, err, _ := m.group.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return m.State(), nil
}

func (m *Monitor) refresh(ctx context.Context) error {
	sessions, rep, err := m.loader.Load(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	report := stats.Compute(sessions, now)

	history, err := m.store.History(report.Today.Date)
	if err != nil {
		log.Printf("monitor: history: %v", err)
		history = m.State().History
	}

	m.publish(func(s *State) {
		s.Today = report.Today
		s.Week = report.Week
		s.Report = rep
		s.History = history
		s.UpdatedAt = now
	})
	log.Printf("scan: %s", rep)

	if m.autoSummary {
		m.requestSummary(report.Today)
	}
	if m.autoBackfill {
		m.startBackfill(report.Week, report.Today.Date)
	}
	return nil
}

// Run refreshes once, then on change signals and every Rescan interval until
// ctx is done. A signal within Debounce of the last triggered refresh is
// ignored; an accepted one waits Settle before scanning.
func (m *Monitor) Run(ctx context.Context, changes <-chan struct{}) error {
	last := time.Now()
	if _, err := m.Refresh(ctx); err != nil {
		log.Printf("monitor: refresh: %v", err)
	}

	var tick <-chan time.Time
	if m.rescan > 0 {
		ticker := time.NewTicker(m.rescan)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if time.Since(last) < m.debounce {
				continue
			}
			last = time.Now()
			if err := backfill.Sleep(ctx, m.settle); err != nil {
				return nil
			}
		case <-tick:
			last = time.Now()
		}

		if _, err := m.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("monitor: refresh: %v", err)
		}
	}
}

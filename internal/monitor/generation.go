package monitor

import (
	"context"
	"log"

	"github.com/hpungsan/daybook/internal/backfill"
	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/summary"
)

// resetDayLocked drops today's in-memory summary when the calendar day has
// changed since the last request. m.mu must be held.
func (m *Monitor) resetDayLocked(date string) {
	if m.summaryDate == date {
		return
	}
	m.summaryDate = date
	m.current = nil
	m.pendingID = ""
	m.pendingFP = ""
	m.publishLocked(func(s *State) {
		s.Summary = nil
		s.Generating = false
		s.Error = ""
	})
}

// requestSummary brings today's summary in line with day's fingerprint. An
// unchanged fingerprint is a no-op, as is one already being generated. On a
// cold start a stored summary with the same fingerprint is adopted. Otherwise
// a generation call starts in the background; in local-only mode, or for a
// day without sessions, the summary is produced immediately.
func (m *Monitor) requestSummary(day stats.DayStats) {
	fp := day.Fingerprint()
	stored := m.storedFor(day.Date, fp)

	m.mu.Lock()
	m.resetDayLocked(day.Date)

	if m.current != nil && m.current.Fingerprint == fp {
		if m.pendingID != "" {
			m.pendingID, m.pendingFP = "", ""
			m.publishLocked(func(s *State) { s.Generating = false })
		}
		m.mu.Unlock()
		return
	}
	if m.pendingID != "" && m.pendingFP == fp {
		m.mu.Unlock()
		return
	}
	if m.adoptLocked(stored, fp) {
		m.mu.Unlock()
		return
	}

	id := backfill.NewID()
	m.pendingID, m.pendingFP = id, fp
	async := m.gen != nil && day.TotalSessions > 0
	if async {
		m.publishLocked(func(s *State) { s.Generating = true })
	}
	m.mu.Unlock()

	if !async {
		sum, err := summary.Generate(m.bg, m.gen, day)
		m.finish(id, day.Date, sum, err)
		return
	}

	log.Printf("summary: request %s for %s (%d sessions)", id, day.Date, day.TotalSessions)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		sum, err := summary.Generate(m.bg, m.gen, day)
		m.finish(id, day.Date, sum, err)
	}()
}

// storedFor reads date's stored summary unless the published one already
// matches fp. m.mu must not be held.
func (m *Monitor) storedFor(date, fp string) *summary.Summary {
	if cur := m.State().Summary; cur != nil && cur.Fingerprint == fp {
		return nil
	}
	return m.store.Load(date)
}

// adoptLocked makes stored current when nothing is current yet and its
// fingerprint matches fp. m.mu must be held.
func (m *Monitor) adoptLocked(stored *summary.Summary, fp string) bool {
	if m.current != nil || stored == nil || stored.Fingerprint != fp {
		return false
	}
	m.current = stored
	m.publishLocked(func(s *State) { s.Summary = stored })
	return true
}

// finish publishes and persists a completed generation unless a newer
// request has superseded it. It reports whether the result was applied.
func (m *Monitor) finish(id, date string, sum summary.Summary, genErr error) bool {
	m.mu.Lock()
	if m.pendingID != id {
		m.mu.Unlock()
		log.Printf("summary: discard stale result %s for %s", id, date)
		return false
	}
	m.pendingID, m.pendingFP = "", ""
	m.current = &sum

	msg := ""
	if genErr != nil {
		msg = genErr.Error()
		log.Printf("summary: generation failed, using local summary: %v", genErr)
	}
	m.publishLocked(func(s *State) {
		s.Summary = &sum
		s.Generating = false
		s.Error = msg
	})
	m.mu.Unlock()

	if err := m.store.Save(date, sum); err != nil {
		log.Printf("summary: save %s: %v", date, err)
	}
	return true
}

// GenerateToday produces today's summary synchronously from the last
// published statistics. Without force an up-to-date summary is returned as
// is. A generation failure still yields the stored local summary together
// with the error.
func (m *Monitor) GenerateToday(ctx context.Context, force bool) (*summary.Summary, error) {
	day := m.State().Today
	fp := day.Fingerprint()
	var stored *summary.Summary
	if !force {
		stored = m.storedFor(day.Date, fp)
	}

	m.mu.Lock()
	m.resetDayLocked(day.Date)
	if !force && (m.current != nil && m.current.Fingerprint == fp || m.adoptLocked(stored, fp)) {
		cur := m.current
		m.mu.Unlock()
		return cur, nil
	}
	id := backfill.NewID()
	m.pendingID, m.pendingFP = id, fp
	m.publishLocked(func(s *State) { s.Generating = true })
	m.mu.Unlock()

	sum, err := summary.Generate(ctx, m.gen, day)
	if ctx.Err() != nil {
		m.mu.Lock()
		if m.pendingID == id {
			m.pendingID, m.pendingFP = "", ""
			m.publishLocked(func(s *State) { s.Generating = false })
		}
		m.mu.Unlock()
		return nil, ctx.Err()
	}
	m.finish(id, day.Date, sum, err)
	return &sum, err
}

// startBackfill runs the day's backfill once per calendar day. Local-only
// runs complete before it returns; generator runs continue in the background.
func (m *Monitor) startBackfill(week []stats.DayStats, today string) {
	m.mu.Lock()
	if m.backfillDate == today {
		m.mu.Unlock()
		return
	}
	m.backfillDate = today
	m.mu.Unlock()

	days := backfill.MissingDays(week, m.store)
	if len(days) == 0 {
		return
	}

	if !m.scheduler.Async() {
		m.logBackfill(m.scheduler.Run(m.bg, days))
		m.refreshHistory(today)
		return
	}

	m.publish(func(s *State) { s.Backfilling = true })
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.logBackfill(<-m.scheduler.Start(m.bg, days))
		m.refreshHistory(today)
		m.publish(func(s *State) { s.Backfilling = false })
	}()
}

// Backfill runs a backfill for the last published week and waits for it.
func (m *Monitor) Backfill(ctx context.Context) backfill.Result {
	st := m.State()
	days := backfill.MissingDays(st.Week, m.store)

	m.publish(func(s *State) { s.Backfilling = true })
	res := m.scheduler.Run(ctx, days)
	m.logBackfill(res)
	m.refreshHistory(st.Today.Date)
	m.publish(func(s *State) { s.Backfilling = false })
	return res
}

func (m *Monitor) logBackfill(res backfill.Result) {
	if res.Err != nil {
		log.Printf("backfill: run %s stopped: %v", res.RunID, res.Err)
		return
	}
	if len(res.Days) > 0 {
		log.Printf("backfill: run %s wrote %d days", res.RunID, len(res.Days))
	}
}

func (m *Monitor) refreshHistory(today string) {
	history, err := m.store.History(today)
	if err != nil {
		log.Printf("monitor: history: %v", err)
		return
	}
	m.publish(func(s *State) { s.History = history })
}

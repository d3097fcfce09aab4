package ops

import (
	"context"

	"github.com/hpungsan/daybook/internal/backfill"
	"github.com/hpungsan/daybook/internal/errors"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/store"
	"github.com/hpungsan/daybook/internal/summary"
)

// Summary sources.
const (
	SourceLive   = "live"   // today's in-memory summary
	SourceStored = "stored" // read from the summary store
)

// GetSummaryInput contains parameters for the GetSummary operation.
type GetSummaryInput struct {
	Date string // YYYY-MM-DD or "today"; default: today
}

// GetSummaryOutput contains the result of the GetSummary operation.
type GetSummaryOutput struct {
	Date     string          `json:"date"`
	Summary  summary.Summary `json:"summary"`
	Markdown string          `json:"markdown"`
	Source   string          `json:"source"`
}

// GetSummary returns the summary for a date. For today the published state
// wins over the stored file; past dates come from the store only.
func GetSummary(m *monitor.Monitor, input GetSummaryInput) (*GetSummaryOutput, error) {
	date, err := resolveDate(m, input.Date)
	if err != nil {
		return nil, err
	}

	st := m.State()
	if date == st.Today.Date && st.Summary != nil {
		return newSummaryOutput(date, *st.Summary, SourceLive), nil
	}

	stored := m.Store().Load(date)
	if stored == nil {
		return nil, errors.NewNotFound("summary", date)
	}
	return newSummaryOutput(date, *stored, SourceStored), nil
}

func newSummaryOutput(date string, s summary.Summary, source string) *GetSummaryOutput {
	return &GetSummaryOutput{Date: date, Summary: s, Markdown: s.Markdown(), Source: source}
}

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit  int // default: 30, max: 365
	Offset int // default: 0
}

// HistoryItem is one stored past day.
type HistoryItem struct {
	Date     string       `json:"date"`
	Headline string       `json:"headline"`
	Mood     summary.Mood `json:"mood"`
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []HistoryItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// History lists the stored summaries strictly before today, newest first.
func History(m *monitor.Monitor, input HistoryInput) (*HistoryOutput, error) {
	today, _ := resolveDate(m, "")
	dates, err := m.Store().History(today)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	paged, pg := page(dates, input.Limit, input.Offset, DefaultHistoryLimit, MaxHistoryLimit)
	items := make([]HistoryItem, 0, len(paged))
	for _, d := range paged {
		item := HistoryItem{Date: d}
		if s := m.Store().Load(d); s != nil {
			item.Headline = s.Headline
			item.Mood = s.Mood
		}
		items = append(items, item)
	}
	return &HistoryOutput{Items: items, Pagination: pg, Sort: "date_desc"}, nil
}

// GenerateInput contains parameters for the Generate operation.
type GenerateInput struct {
	Force bool // regenerate even when the summary is current
}

// GenerateOutput contains the result of the Generate operation.
type GenerateOutput struct {
	Date     string          `json:"date"`
	Summary  summary.Summary `json:"summary"`
	Markdown string          `json:"markdown"`
	Error    string          `json:"error,omitempty"` // set when the local fallback was used
}

// Generate rescans and produces today's summary, waiting for the result. A
// failed call still succeeds with the local fallback and reports the failure
// in Error.
func Generate(ctx context.Context, m *monitor.Monitor, input GenerateInput) (*GenerateOutput, error) {
	st, err := refresh(ctx, m)
	if err != nil {
		return nil, err
	}

	sum, genErr := m.GenerateToday(ctx, input.Force)
	if sum == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewInternal(genErr)
	}

	out := &GenerateOutput{Date: st.Today.Date, Summary: *sum, Markdown: sum.Markdown()}
	if genErr != nil {
		out.Error = genErr.Error()
	}
	return out, nil
}

// BackfillOutput contains the result of the Backfill operation.
type BackfillOutput struct {
	RunID   string               `json:"run_id"`
	Days    []backfill.DayResult `json:"days"`
	LogPath string               `json:"log_path"`
	Log     []string             `json:"log"` // last lines of the backfill log
}

// backfillLogTail is the number of log lines returned with a run.
const backfillLogTail = 20

// Backfill rescans and fills in missing summaries for the last six days,
// waiting for the run to finish.
func Backfill(ctx context.Context, m *monitor.Monitor) (*BackfillOutput, error) {
	if _, err := refresh(ctx, m); err != nil {
		return nil, err
	}

	res := m.Backfill(ctx)
	if res.Err != nil {
		return nil, res.Err
	}

	days := res.Days
	if days == nil {
		days = []backfill.DayResult{}
	}
	out := &BackfillOutput{RunID: res.RunID, Days: days, LogPath: m.Store().LogPath()}

	lines, err := store.NewBackfillLog(out.LogPath).Tail(backfillLogTail)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	out.Log = lines
	return out, nil
}

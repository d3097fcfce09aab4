package ops

import (
	"context"
	"slices"
	"strings"

	"github.com/hpungsan/daybook/internal/errors"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/scan"
	"github.com/hpungsan/daybook/internal/session"
	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/store"
	"github.com/hpungsan/daybook/internal/summary"
)

// DayView is the per-day statistics shape returned by Today and Week.
type DayView struct {
	Date          string               `json:"date"`
	TotalSessions int                  `json:"total_sessions"`
	TotalMessages int                  `json:"total_messages"`
	HumanMessages int                  `json:"human_messages"`
	ActiveMinutes int                  `json:"active_minutes"`
	ActiveTime    string               `json:"active_time"`
	Projects      []stats.ProjectCount `json:"projects"`
	HasSummary    bool                 `json:"has_summary"`
}

// NewDayView renders d for output; st reports whether a summary is stored.
func NewDayView(d stats.DayStats, st *store.Store) DayView {
	projects := d.TopProjects()
	if projects == nil {
		projects = []stats.ProjectCount{}
	}
	return DayView{
		Date:          d.Date,
		TotalSessions: d.TotalSessions,
		TotalMessages: d.TotalMessages,
		HumanMessages: d.HumanMessages,
		ActiveMinutes: int(d.ActiveDuration.Minutes()),
		ActiveTime:    stats.FormatDuration(d.ActiveDuration),
		Projects:      projects,
		HasSummary:    st.Exists(d.Date),
	}
}

// refresh rescans and returns the new state.
func refresh(ctx context.Context, m *monitor.Monitor) (*monitor.State, error) {
	st, err := m.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewInternal(err)
	}
	return st, nil
}

// TodayInput contains parameters for the Today operation.
type TodayInput struct {
	IncludeSessions bool // default: false
}

// TodayOutput contains the result of the Today operation.
type TodayOutput struct {
	DayView
	Summary    *summary.Summary  `json:"summary"`
	Generating bool              `json:"generating"`
	Error      string            `json:"error,omitempty"`
	Sessions   []session.Session `json:"sessions,omitempty"`
	Scan       scan.Report       `json:"scan"`
}

// Today rescans and reports today's statistics and current summary.
func Today(ctx context.Context, m *monitor.Monitor, input TodayInput) (*TodayOutput, error) {
	st, err := refresh(ctx, m)
	if err != nil {
		return nil, err
	}

	out := &TodayOutput{
		DayView:    NewDayView(st.Today, m.Store()),
		Summary:    st.Summary,
		Generating: st.Generating,
		Error:      st.Error,
		Scan:       st.Report,
	}
	if input.IncludeSessions {
		out.Sessions = st.Today.Sessions
	}
	return out, nil
}

// WeekOutput contains the result of the Week operation.
type WeekOutput struct {
	Days          []DayView `json:"days"` // today first
	TotalSessions int       `json:"total_sessions"`
	ActiveTime    string    `json:"active_time"`
}

// Week rescans and reports the last seven days, today first.
func Week(ctx context.Context, m *monitor.Monitor) (*WeekOutput, error) {
	st, err := refresh(ctx, m)
	if err != nil {
		return nil, err
	}

	out := &WeekOutput{Days: make([]DayView, 0, len(st.Week))}
	var total stats.DayStats
	for _, d := range st.Week {
		out.Days = append(out.Days, NewDayView(d, m.Store()))
		total.TotalSessions += d.TotalSessions
		total.ActiveDuration += d.ActiveDuration
	}
	out.TotalSessions = total.TotalSessions
	out.ActiveTime = stats.FormatDuration(total.ActiveDuration)
	return out, nil
}

// SessionsInput contains parameters for the Sessions operation.
type SessionsInput struct {
	Date    string // YYYY-MM-DD or "today"; default: today
	Project string // case-insensitive project name; empty matches all
	Limit   int    // default: 20, max: 100
	Offset  int    // default: 0
}

// SessionItem is one session with its rendered active time.
type SessionItem struct {
	session.Session
	ActiveTime string `json:"active_time"`
}

// SessionsOutput contains the result of the Sessions operation.
type SessionsOutput struct {
	Date       string        `json:"date"`
	Items      []SessionItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// Sessions lists one day's sessions, newest first. Only the last seven days
// are available.
func Sessions(ctx context.Context, m *monitor.Monitor, input SessionsInput) (*SessionsOutput, error) {
	date, err := resolveDate(m, input.Date)
	if err != nil {
		return nil, err
	}
	st, err := refresh(ctx, m)
	if err != nil {
		return nil, err
	}
	day, ok := dayInWeek(st, date)
	if !ok {
		return nil, errors.NewInvalidRequest("date must be within the last 7 days")
	}

	project := strings.TrimSpace(input.Project)
	items := make([]SessionItem, 0, len(day.Sessions))
	for _, s := range day.Sessions {
		if project != "" && !strings.EqualFold(s.ProjectName, project) {
			continue
		}
		items = append(items, SessionItem{Session: s, ActiveTime: stats.FormatDuration(s.ActiveDuration)})
	}
	slices.SortStableFunc(items, func(a, b SessionItem) int {
		return b.Start.Compare(a.Start)
	})

	paged, pg := page(items, input.Limit, input.Offset, DefaultListLimit, MaxListLimit)
	return &SessionsOutput{
		Date:       date,
		Items:      paged,
		Pagination: pg,
		Sort:       "start_desc",
	}, nil
}

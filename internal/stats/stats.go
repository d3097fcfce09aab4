// Package stats folds sessions into per-day activity statistics. Everything
// here is a pure function of its inputs.
package stats

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hpungsan/daybook/internal/session"
)

// DateLayout is the calendar-date format used in file names, URLs and JSON.
const DateLayout = "2006-01-02"

// WeekDays is the number of days in the trailing window, today included.
const WeekDays = 7

// DayStats aggregates the sessions that started on one calendar day.
type DayStats struct {
	Date           string            `json:"date"`
	Day            time.Time         `json:"-"` // local midnight
	TotalSessions  int               `json:"total_sessions"`
	TotalMessages  int               `json:"total_messages"`
	HumanMessages  int               `json:"human_messages"`
	ActiveDuration time.Duration     `json:"active_duration"`
	Sessions       []session.Session `json:"sessions"`
	Projects       map[string]int    `json:"projects"`
}

// Report is today's stats plus the trailing week.
type Report struct {
	Today DayStats `json:"today"`
	// Week[0] is today, Week[i] is i days back.
	Week []DayStats `json:"week"`
}

// ProjectCount is one entry of a project breakdown.
type ProjectCount struct {
	Project  string `json:"project"`
	Sessions int    `json:"sessions"`
}

// StartOfDay returns local midnight of t in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// ForDay folds the sessions whose start falls on day's calendar date, in
// day's location. Sessions without a start time never match.
func ForDay(sessions []session.Session, day time.Time) DayStats {
	day = StartOfDay(day)
	ds := DayStats{
		Date:     day.Format(DateLayout),
		Day:      day,
		Projects: make(map[string]int),
	}
	for _, s := range sessions {
		if !s.HasStart() || !SameDay(s.Start, day, day.Location()) {
			continue
		}
		ds.TotalSessions++
		ds.TotalMessages += s.MessageCount
		ds.HumanMessages += s.HumanMessages
		ds.ActiveDuration += s.ActiveDuration
		ds.Sessions = append(ds.Sessions, s)
		ds.Projects[s.ProjectName]++
	}
	return ds
}

// Compute builds today's stats, sessions newest first, and the stats of each
// of the last WeekDays days, each folded independently.
func Compute(sessions []session.Session, now time.Time) Report {
	today := ForDay(sessions, now)
	SortByStartDesc(today.Sessions)

	week := make([]DayStats, WeekDays)
	week[0] = today
	for i := 1; i < WeekDays; i++ {
		week[i] = ForDay(sessions, today.Day.AddDate(0, 0, -i))
	}
	return Report{Today: today, Week: week}
}

// SortByStartDesc orders sessions newest first.
func SortByStartDesc(sessions []session.Session) {
	slices.SortStableFunc(sessions, func(a, b session.Session) int {
		return b.Start.Compare(a.Start)
	})
}

// SessionIDs returns the ids of the day's sessions.
func (d DayStats) SessionIDs() []string {
	return lo.Map(d.Sessions, func(s session.Session, _ int) string { return s.ID })
}

// Fingerprint identifies the day's session set independent of order.
func (d DayStats) Fingerprint() string {
	return Fingerprint(d.SessionIDs())
}

// Fingerprint sorts ids and joins them with commas.
func Fingerprint(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return strings.Join(sorted, ",")
}

// TopProjects returns the project breakdown by session count, highest first.
// Projects with equal counts come out in map iteration order, which is not
// stable between calls.
func (d DayStats) TopProjects() []ProjectCount {
	out := lo.MapToSlice(d.Projects, func(name string, n int) ProjectCount {
		return ProjectCount{Project: name, Sessions: n}
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sessions > out[j].Sessions
	})
	return out
}

// FormatDuration renders an active duration as "<1m", "45m" or "1h 20m".
func FormatDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	switch {
	case minutes < 1:
		return "<1m"
	case minutes < 60:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
}

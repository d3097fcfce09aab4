// Package ops implements the daybook operations shared by the CLI, the MCP
// server and the web view. Each operation takes an Input struct and returns
// an Output struct ready for JSON encoding.
package ops

import (
	"strings"

	"github.com/hpungsan/daybook/internal/errors"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/store"
)

// Pagination limits
const (
	DefaultListLimit    = 20
	MaxListLimit        = 100
	DefaultHistoryLimit = 30
	MaxHistoryLimit     = 365
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// page clamps limit and offset and slices items accordingly.
func page[T any](items []T, limit, offset, defLimit, maxLimit int) ([]T, Pagination) {
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = max(offset, 0)

	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)

	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
		Total:   total,
	}
}

// resolveDate maps "" and "today" to today's date and validates anything else.
func resolveDate(m *monitor.Monitor, date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" || strings.EqualFold(date, "today") {
		return m.Now().Format(stats.DateLayout), nil
	}
	if !store.ValidDate(date) {
		return "", errors.NewInvalidRequest("date must be YYYY-MM-DD or \"today\"")
	}
	return date, nil
}

// dayInWeek returns the published statistics for date when it falls inside
// the last seven days.
func dayInWeek(st *monitor.State, date string) (stats.DayStats, bool) {
	for _, d := range st.Week {
		if d.Date == date {
			return d, true
		}
	}
	return stats.DayStats{}, false
}

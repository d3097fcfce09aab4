package web

import (
	"net/http"
	"strconv"

	"github.com/hpungsan/daybook/internal/errors"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/ops"
	"github.com/hpungsan/daybook/internal/store"
)

// Handlers contains HTTP route handlers for the web view. They only read the
// published state; the monitor's own loop keeps it current.
type Handlers struct {
	m        *monitor.Monitor
	renderer *Renderer
}

// HandleState handles GET /api/state: the latest published snapshot.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.m.State())
}

// HandleDaySummary handles GET /api/days/{date}: one day's summary.
func (h *Handlers) HandleDaySummary(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GetSummary(h.m, ops.GetSummaryInput{Date: r.PathValue("date")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleHistoryAPI handles GET /api/history: stored past days, newest first.
func (h *Handlers) HandleHistoryAPI(w http.ResponseWriter, r *http.Request) {
	result, err := ops.History(h.m, historyInput(r))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleToday handles GET /today: today's activity and summary.
func (h *Handlers) HandleToday(w http.ResponseWriter, r *http.Request) {
	st := h.m.State()
	data := h.dayPage(st, st.Today.Date)
	data.IsToday = true
	data.Title = "Today"
	data.Nav = "today"
	data.Sessions = st.Today.Sessions
	data.Summary = st.Summary
	data.Generating = st.Generating
	data.Backfilling = st.Backfilling
	data.Error = st.Error
	if st.Summary != nil {
		data.SummaryHTML = renderMarkdown(st.Summary.Markdown())
	}
	h.renderer.renderPage(w, "day", data)
}

// HandleDay handles GET /days/{date}: a past day's summary and statistics.
func (h *Handlers) HandleDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !store.ValidDate(date) {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("date must be YYYY-MM-DD"))
		return
	}

	st := h.m.State()
	if date == st.Today.Date {
		http.Redirect(w, r, "/today", http.StatusFound)
		return
	}

	data := h.dayPage(st, date)
	data.Title = date
	data.Nav = "history"

	sum := h.m.Store().Load(date)
	if sum == nil && data.Stats == nil {
		h.renderer.renderError(w, r, errors.NewNotFound("day", date))
		return
	}
	if sum != nil {
		data.Summary = sum
		data.SummaryHTML = renderMarkdown(sum.Markdown())
	}
	for _, d := range st.Week {
		if d.Date == date {
			data.Sessions = d.Sessions
		}
	}
	h.renderer.renderPage(w, "day", data)
}

// HandleHistory handles GET /history: stored past days as HTML.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	result, err := ops.History(h.m, historyInput(r))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, "history", HistoryPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     "history",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// dayPage fills the fields shared by the today and day pages.
func (h *Handlers) dayPage(st *monitor.State, date string) DayPageData {
	data := DayPageData{
		PageData:  PageData{Version: h.renderer.version},
		Date:      date,
		UpdatedAt: st.UpdatedAt,
	}
	for _, d := range st.Week {
		view := ops.NewDayView(d, h.m.Store())
		data.Week = append(data.Week, view)
		if d.Date == date {
			data.Stats = &view
		}
	}
	return data
}

func historyInput(r *http.Request) ops.HistoryInput {
	return ops.HistoryInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultHistoryLimit),
		Offset: parseIntParam(r, "offset", 0),
	}
}

// parseIntParam reads an integer query parameter, returning def when absent or invalid.
func parseIntParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hpungsan/daybook/internal/backfill"
	"github.com/hpungsan/daybook/internal/errors"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/scan"
	"github.com/hpungsan/daybook/internal/store"
	"github.com/hpungsan/daybook/internal/summary"
)

var testNow = time.Date(2026, 10, 8, 15, 0, 0, 0, time.UTC)

type stubGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.text, g.err
}

type testEnv struct {
	root  string
	store *store.Store
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{root: filepath.Join(dir, "projects"), store: store.New(filepath.Join(dir, "summaries"))}
}

func (e testEnv) addSession(t *testing.T, project, id string, start time.Time, ask string) {
	t.Helper()
	path := filepath.Join(e.root, "-Users-dev-Projects-"+project, id+".jsonl")
	content := fmt.Sprintf(
		`{"type":"user","timestamp":%q,"message":{"role":"user","content":%q}}`+"\n"+
			`{"type":"assistant","timestamp":%q,"message":{"role":"assistant","content":"done"}}`+"\n",
		start.Format(time.RFC3339), ask, start.Add(20*time.Minute).Format(time.RFC3339))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write session: %v", err)
	}
}

// newTestMonitor returns a monitor that never generates on its own; ops
// drive generation explicitly.
func (e testEnv) newTestMonitor(t *testing.T, gen summary.TextGenerator) *monitor.Monitor {
	t.Helper()
	opts := monitor.Options{
		Loader: scan.NewLoader(scan.Options{Root: e.root, Home: "/Users/dev"}),
		Store:  e.store,
		Now:    func() time.Time { return testNow },
	}
	if gen != nil {
		opts.Generator = gen
	}
	m := monitor.New(opts)
	t.Cleanup(m.Close)
	return m
}

func TestToday(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "acme", "s1", testNow.Add(-3*time.Hour), "add the health endpoint")
	e.addSession(t, "acme", "s2", testNow.Add(-time.Hour), "fix flaky login test")
	e.addSession(t, "blog", "s3", testNow.Add(-2*time.Hour), "draft the release post")
	m := e.newTestMonitor(t, nil)

	out, err := Today(context.Background(), m, TodayInput{})
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if out.Date != "2026-10-08" {
		t.Errorf("Date = %q, want 2026-10-08", out.Date)
	}
	if out.TotalSessions != 3 {
		t.Errorf("TotalSessions = %d, want 3", out.TotalSessions)
	}
	if out.ActiveTime != "1h 0m" {
		t.Errorf("ActiveTime = %q, want %q", out.ActiveTime, "1h 0m")
	}
	if len(out.Projects) != 2 || out.Projects[0].Project != "acme" || out.Projects[0].Sessions != 2 {
		t.Errorf("Projects = %+v, want acme(2) first", out.Projects)
	}
	if out.Sessions != nil {
		t.Error("Sessions should be omitted unless requested")
	}
	if out.Scan.Files != 3 {
		t.Errorf("Scan.Files = %d, want 3", out.Scan.Files)
	}

	out, err = Today(context.Background(), m, TodayInput{IncludeSessions: true})
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if len(out.Sessions) != 3 {
		t.Errorf("len(Sessions) = %d, want 3", len(out.Sessions))
	}
	if out.Sessions[0].ID != "s2" {
		t.Errorf("Sessions[0].ID = %q, want newest first (s2)", out.Sessions[0].ID)
	}
}

func TestWeek(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "acme", "s1", testNow.Add(-time.Hour), "add the health endpoint")
	e.addSession(t, "acme", "s2", testNow.AddDate(0, 0, -3), "refactor the parser")
	if err := e.store.Save("2026-10-05", summary.Quiet("")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	m := e.newTestMonitor(t, nil)

	out, err := Week(context.Background(), m)
	if err != nil {
		t.Fatalf("Week failed: %v", err)
	}
	if len(out.Days) != 7 {
		t.Fatalf("len(Days) = %d, want 7", len(out.Days))
	}
	if out.Days[0].Date != "2026-10-08" || out.Days[6].Date != "2026-10-02" {
		t.Errorf("Days span %s..%s, want 2026-10-08..2026-10-02", out.Days[0].Date, out.Days[6].Date)
	}
	if out.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", out.TotalSessions)
	}
	if !out.Days[3].HasSummary {
		t.Error("Days[3].HasSummary = false, want true")
	}
	if out.Days[1].Projects == nil {
		t.Error("Projects should be an empty slice, not nil")
	}
}

func TestSessions(t *testing.T) {
	e := newTestEnv(t)
	for i := 0; i < 5; i++ {
		e.addSession(t, "acme", fmt.Sprintf("a%d", i), testNow.Add(-time.Duration(i+1)*time.Hour), "task number one")
	}
	e.addSession(t, "blog", "b1", testNow.Add(-30*time.Minute), "draft the release post")
	e.addSession(t, "acme", "old", testNow.AddDate(0, 0, -2), "refactor the parser")
	m := e.newTestMonitor(t, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     SessionsInput
		wantIDs   []string
		wantTotal int
		wantMore  bool
		wantCode  errors.ErrorCode
	}{
		{
			name:      "today all projects",
			input:     SessionsInput{},
			wantIDs:   []string{"b1", "a0", "a1", "a2", "a3", "a4"},
			wantTotal: 6,
		},
		{
			name:      "project filter is case-insensitive",
			input:     SessionsInput{Date: "today", Project: "BLOG"},
			wantIDs:   []string{"b1"},
			wantTotal: 1,
		},
		{
			name:      "pagination",
			input:     SessionsInput{Project: "acme", Limit: 2, Offset: 1},
			wantIDs:   []string{"a1", "a2"},
			wantTotal: 5,
			wantMore:  true,
		},
		{
			name:      "offset past end",
			input:     SessionsInput{Offset: 50},
			wantIDs:   []string{},
			wantTotal: 6,
		},
		{
			name:      "past day",
			input:     SessionsInput{Date: "2026-10-06"},
			wantIDs:   []string{"old"},
			wantTotal: 1,
		},
		{
			name:     "outside the week",
			input:    SessionsInput{Date: "2026-09-01"},
			wantCode: errors.ErrInvalidRequest,
		},
		{
			name:     "malformed date",
			input:    SessionsInput{Date: "yesterday"},
			wantCode: errors.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Sessions(ctx, m, tt.input)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sessions failed: %v", err)
			}
			ids := make([]string, len(out.Items))
			for i, it := range out.Items {
				ids[i] = it.ID
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if out.Pagination.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", out.Pagination.Total, tt.wantTotal)
			}
			if out.Pagination.HasMore != tt.wantMore {
				t.Errorf("HasMore = %v, want %v", out.Pagination.HasMore, tt.wantMore)
			}
		})
	}
}

func TestPage_Bounds(t *testing.T) {
	items := make([]int, 250)

	got, pg := page(items, 0, -5, DefaultListLimit, MaxListLimit)
	if len(got) != DefaultListLimit || pg.Offset != 0 || !pg.HasMore {
		t.Errorf("default page = len %d %+v", len(got), pg)
	}

	got, pg = page(items, 1000, 200, DefaultListLimit, MaxListLimit)
	if pg.Limit != MaxListLimit {
		t.Errorf("Limit = %d, want %d", pg.Limit, MaxListLimit)
	}
	if len(got) != 50 || pg.HasMore {
		t.Errorf("last page = len %d HasMore %v, want 50 false", len(got), pg.HasMore)
	}
}

func TestGetSummary(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "acme", "s1", testNow.Add(-time.Hour), "add the health endpoint")
	past := summary.Summary{Headline: "Past day", Narrative: "n", Highlights: []string{"x"}, Mood: summary.MoodFocused, Fingerprint: "p"}
	if err := e.store.Save("2026-10-01", past); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	m := e.newTestMonitor(t, nil)
	ctx := context.Background()

	if _, err := GetSummary(m, GetSummaryInput{}); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND before any summary exists", err)
	}

	out, err := GetSummary(m, GetSummaryInput{Date: "2026-10-01"})
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if out.Source != SourceStored || out.Summary.Headline != "Past day" {
		t.Errorf("got %s %q, want stored %q", out.Source, out.Summary.Headline, "Past day")
	}
	if !strings.HasPrefix(out.Markdown, "## Past day") {
		t.Errorf("Markdown = %q", out.Markdown)
	}

	if _, err := Generate(ctx, m, GenerateInput{}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	out, err = GetSummary(m, GetSummaryInput{Date: "today"})
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if out.Source != SourceLive {
		t.Errorf("Source = %q, want %q", out.Source, SourceLive)
	}

	if _, err := GetSummary(m, GetSummaryInput{Date: "10/01/2026"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestHistory(t *testing.T) {
	e := newTestEnv(t)
	for _, d := range []string{"2026-10-01", "2026-10-03", "2026-10-07", "2026-10-08"} {
		s := summary.Quiet("")
		s.Headline = "day " + d
		if err := e.store.Save(d, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	m := e.newTestMonitor(t, nil)

	out, err := History(m, HistoryInput{Limit: 2})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if out.Pagination.Total != 3 {
		t.Errorf("Total = %d, want 3 (today excluded)", out.Pagination.Total)
	}
	if len(out.Items) != 2 || out.Items[0].Date != "2026-10-07" || out.Items[1].Date != "2026-10-03" {
		t.Errorf("Items = %+v", out.Items)
	}
	if out.Items[0].Headline != "day 2026-10-07" {
		t.Errorf("Headline = %q", out.Items[0].Headline)
	}
	if !out.Pagination.HasMore {
		t.Error("HasMore = false, want true")
	}
}

func TestGenerate(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "acme", "s1", testNow.Add(-time.Hour), "add the health endpoint")
	gen := &stubGenerator{text: `{"headline":"API day","narrative":"n","highlights":["a","b"],"mood":"productive"}`}
	m := e.newTestMonitor(t, gen)
	ctx := context.Background()

	out, err := Generate(ctx, m, GenerateInput{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Summary.Headline != "API day" || out.Error != "" {
		t.Errorf("got %q error %q", out.Summary.Headline, out.Error)
	}
	if out.Summary.Fingerprint != "s1" {
		t.Errorf("Fingerprint = %q, want s1", out.Summary.Fingerprint)
	}
	if stored := e.store.Load("2026-10-08"); stored == nil || stored.Headline != "API day" {
		t.Errorf("stored = %+v, want persisted summary", stored)
	}

	if _, err := Generate(ctx, m, GenerateInput{}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1 (current summary reused)", gen.calls)
	}
}

func TestGenerate_FailureUsesLocalFallback(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "acme", "s1", testNow.Add(-time.Hour), "add the health endpoint")
	gen := &stubGenerator{err: errors.NewAPIError(503, "unavailable")}
	m := e.newTestMonitor(t, gen)

	out, err := Generate(context.Background(), m, GenerateInput{Force: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Summary.Headline != "Quick session on acme" {
		t.Errorf("Headline = %q, want local fallback", out.Summary.Headline)
	}
	if !strings.Contains(out.Error, "503") {
		t.Errorf("Error = %q, want upstream status", out.Error)
	}
	if m.State().Error == "" {
		t.Error("State().Error should carry the failure")
	}
}

func TestBackfill(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "acme", "old1", testNow.AddDate(0, 0, -1), "refactor the parser")
	e.addSession(t, "blog", "old2", testNow.AddDate(0, 0, -4), "draft the release post")
	m := e.newTestMonitor(t, nil)

	out, err := Backfill(context.Background(), m)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if out.RunID == "" {
		t.Error("RunID is empty")
	}
	if len(out.Days) != 2 {
		t.Fatalf("len(Days) = %d, want 2", len(out.Days))
	}
	if out.Days[0].Date != "2026-10-04" || out.Days[1].Date != "2026-10-07" {
		t.Errorf("days = %s, %s; want oldest first", out.Days[0].Date, out.Days[1].Date)
	}
	for _, d := range out.Days {
		if d.Outcome != backfill.OutcomeLocal {
			t.Errorf("%s outcome = %q, want local", d.Date, d.Outcome)
		}
	}
	if len(out.Log) != 4 {
		t.Errorf("len(Log) = %d, want 4 (started, 2 days, complete)", len(out.Log))
	}

	again, err := Backfill(context.Background(), m)
	if err != nil {
		t.Fatalf("second Backfill failed: %v", err)
	}
	if len(again.Days) != 0 {
		t.Errorf("second run backfilled %d days, want 0", len(again.Days))
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/daybook/internal/backfill"
	"github.com/hpungsan/daybook/internal/config"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/ops"
	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/store"
	"github.com/hpungsan/daybook/internal/summary"
)

var testNow = time.Date(2026, 10, 8, 15, 0, 0, 0, time.UTC)

// replyGenerator answers every prompt with the same reply.
type replyGenerator struct {
	reply string
	calls int
}

func (g *replyGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.reply, nil
}

// setupTestEnv creates a temporary sessions root and summaries dir with one
// session today (acme) and one two days ago (blog).
func setupTestEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "")
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.SessionsDir = filepath.Join(tmpDir, "projects")
	cfg.SummariesDir = filepath.Join(tmpDir, "summaries")
	cfg.HomeDir = "/Users/dev"

	writeSession(t, cfg.SessionsDir, "acme", "s1", testNow.Add(-2*time.Hour), "add the health endpoint")
	writeSession(t, cfg.SessionsDir, "blog", "s2", testNow.AddDate(0, 0, -2), "draft the release post")

	e := newEnv(cfg)
	e.now = func() time.Time { return testNow }
	e.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return e
}

func writeSession(t *testing.T, root, project, id string, start time.Time, ask string) {
	t.Helper()
	path := filepath.Join(root, "-Users-dev-Projects-"+project, id+".jsonl")
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

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(e)
	var buf bytes.Buffer
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"daybook"}, args...))
	return buf.String(), err
}

func TestCLIScan(t *testing.T) {
	e := setupTestEnv(t)

	out, err := runCLI(t, e, "scan")
	if err != nil {
		t.Fatalf("scan command failed: %v", err)
	}

	var output scanOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Projects != 2 {
		t.Errorf("expected 2 projects, got %d", output.Projects)
	}
	if output.Report.Files != 2 || output.Report.Sessions != 2 {
		t.Errorf("expected 2 files and 2 sessions, got %+v", output.Report)
	}
}

func TestCLIToday(t *testing.T) {
	e := setupTestEnv(t)

	out, err := runCLI(t, e, "today", "--sessions")
	if err != nil {
		t.Fatalf("today command failed: %v", err)
	}

	var output ops.TodayOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Date != "2026-10-08" {
		t.Errorf("expected date 2026-10-08, got %s", output.Date)
	}
	if output.TotalSessions != 1 || len(output.Sessions) != 1 {
		t.Errorf("expected 1 session, got %d (%d listed)", output.TotalSessions, len(output.Sessions))
	}
	if output.ActiveMinutes != 20 {
		t.Errorf("expected 20 active minutes, got %d", output.ActiveMinutes)
	}
	if output.Summary != nil {
		t.Error("one-shot commands should not summarize on their own")
	}
}

func TestCLIWeek(t *testing.T) {
	e := setupTestEnv(t)

	out, err := runCLI(t, e, "week")
	if err != nil {
		t.Fatalf("week command failed: %v", err)
	}

	var output ops.WeekOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if len(output.Days) != stats.WeekDays {
		t.Fatalf("expected %d days, got %d", stats.WeekDays, len(output.Days))
	}
	if output.TotalSessions != 2 {
		t.Errorf("expected 2 sessions, got %d", output.TotalSessions)
	}
	if output.Days[2].Date != "2026-10-06" || output.Days[2].TotalSessions != 1 {
		t.Errorf("expected 1 session on 2026-10-06, got %+v", output.Days[2])
	}
}

func TestCLISessions(t *testing.T) {
	e := setupTestEnv(t)

	tests := []struct {
		name    string
		args    []string
		want    int
		wantErr bool
	}{
		{name: "today", args: []string{"sessions"}, want: 1},
		{name: "past day", args: []string{"sessions", "--date=2026-10-06"}, want: 1},
		{name: "project filter", args: []string{"sessions", "--date=2026-10-06", "--project=acme"}, want: 0},
		{name: "outside week", args: []string{"sessions", "--date=2026-09-01"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, e, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
					t.Errorf("expected INVALID_REQUEST, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("sessions command failed: %v", err)
			}
			var output ops.SessionsOutput
			if err := json.Unmarshal([]byte(out), &output); err != nil {
				t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
			}
			if len(output.Items) != tt.want {
				t.Errorf("expected %d items, got %d", tt.want, len(output.Items))
			}
		})
	}
}

func TestCLIGenerate(t *testing.T) {
	e := setupTestEnv(t)
	gen := &replyGenerator{reply: `{"headline":"Shipped the health endpoint","narrative":"One focused session.","highlights":["health check"],"mood":"focused"}`}
	e.gen = gen

	out, err := runCLI(t, e, "generate")
	if err != nil {
		t.Fatalf("generate command failed: %v", err)
	}

	var output ops.GenerateOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Summary.Headline != "Shipped the health endpoint" {
		t.Errorf("unexpected headline %q", output.Summary.Headline)
	}
	if output.Summary.Mood != summary.MoodFocused {
		t.Errorf("expected mood focused, got %s", output.Summary.Mood)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generator call, got %d", gen.calls)
	}

	saved := store.New(e.cfg.SummariesDir).Load("2026-10-08")
	if saved == nil || saved.Headline != output.Summary.Headline {
		t.Errorf("expected summary to be stored, got %+v", saved)
	}

	// A second run finds the stored summary current.
	if _, err := runCLI(t, e, "generate"); err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("expected stored summary to be reused, got %d calls", gen.calls)
	}
}

func TestCLISummary(t *testing.T) {
	e := setupTestEnv(t)

	_, err := runCLI(t, e, "summary", "2026-10-06")
	if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
		t.Fatalf("expected NOT_FOUND before anything is stored, got %v", err)
	}

	st := store.New(e.cfg.SummariesDir)
	if err := st.Save("2026-10-06", summary.Summary{Headline: "Release post", Mood: summary.MoodCreative, Highlights: []string{}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := runCLI(t, e, "summary", "2026-10-06")
	if err != nil {
		t.Fatalf("summary command failed: %v", err)
	}
	var output ops.GetSummaryOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Summary.Headline != "Release post" || output.Source != ops.SourceStored {
		t.Errorf("unexpected output %+v", output)
	}

	out, err = runCLI(t, e, "summary", "--markdown", "2026-10-06")
	if err != nil {
		t.Fatalf("summary --markdown failed: %v", err)
	}
	if !strings.HasPrefix(out, "## Release post") {
		t.Errorf("expected markdown output, got %q", out)
	}

	if _, err := runCLI(t, e, "summary", "yesterday"); err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("expected INVALID_REQUEST for a bad date, got %v", err)
	}
}

func TestCLIBackfillAndHistory(t *testing.T) {
	e := setupTestEnv(t)

	out, err := runCLI(t, e, "backfill")
	if err != nil {
		t.Fatalf("backfill command failed: %v", err)
	}
	var output ops.BackfillOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if len(output.Days) != 1 {
		t.Fatalf("expected 1 backfilled day, got %d", len(output.Days))
	}
	if output.Days[0].Date != "2026-10-06" || output.Days[0].Outcome != backfill.OutcomeLocal {
		t.Errorf("unexpected day result %+v", output.Days[0])
	}

	out, err = runCLI(t, e, "history")
	if err != nil {
		t.Fatalf("history command failed: %v", err)
	}
	var history ops.HistoryOutput
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if len(history.Items) != 1 || history.Items[0].Date != "2026-10-06" {
		t.Errorf("unexpected history %+v", history.Items)
	}
}

func TestCLIReport(t *testing.T) {
	e := setupTestEnv(t)
	st := store.New(e.cfg.SummariesDir)
	if err := st.Save("2026-10-08", summary.Summary{
		Headline:   "Health endpoint",
		Narrative:  "Added a health check.",
		Highlights: []string{"wired the probe"},
		Mood:       summary.MoodFocused,
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := runCLI(t, e, "report")
	if err != nil {
		t.Fatalf("report command failed: %v", err)
	}
	for _, want := range []string{
		"Health endpoint",
		"(focused)",
		"- wired the probe",
		"1 sessions",
		"add the health endpoint",
		"Last 7 days",
		"* 2026-10-08",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
}

func TestCLIErrorHandling(t *testing.T) {
	e := setupTestEnv(t)

	_, err := runCLI(t, e, "sessions", "--date=not-a-date")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("expected error code prefix, got %q", err.Error())
	}
}

func TestStatusLine(t *testing.T) {
	base := monitor.State{Today: stats.DayStats{Date: "2026-10-08", TotalSessions: 2, ActiveDuration: 90 * time.Minute}}

	tests := []struct {
		name   string
		mutate func(*monitor.State)
		want   string
	}{
		{
			name:   "stats only",
			mutate: func(*monitor.State) {},
			want:   "2026-10-08: 2 sessions, " + stats.FormatDuration(90*time.Minute) + " active",
		},
		{
			name:   "generating",
			mutate: func(s *monitor.State) { s.Generating = true },
			want:   "| summarizing...",
		},
		{
			name:   "summary",
			mutate: func(s *monitor.State) { s.Summary = &summary.Summary{Headline: "Parser rewrite"} },
			want:   "| Parser rewrite",
		},
		{
			name:   "error and backfill",
			mutate: func(s *monitor.State) { s.Backfilling = true; s.Error = "status 500" },
			want:   "| backfilling | error: status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := base
			tt.mutate(&st)
			if got := statusLine(&st); !strings.Contains(got, tt.want) {
				t.Errorf("statusLine() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestOneLine(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{input: "short", n: 10, want: "short"},
		{input: "  spread\n over\tlines ", n: 40, want: "spread over lines"},
		{input: "abcdefghijkl", n: 8, want: "abcde..."},
	}
	for _, tt := range tests {
		if got := oneLine(tt.input, tt.n); got != tt.want {
			t.Errorf("oneLine(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"daybook"}, expected: false},
		{name: "today command", args: []string{"daybook", "today"}, expected: true},
		{name: "serve command", args: []string{"daybook", "serve"}, expected: true},
		{name: "help flag", args: []string{"daybook", "--help"}, expected: true},
		{name: "short version flag", args: []string{"daybook", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"daybook", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"daybook"}, expected: false},
		{name: "help command", args: []string{"daybook", "help"}, expected: true},
		{name: "long version flag", args: []string{"daybook", "--version"}, expected: true},
		{name: "subcommand", args: []string{"daybook", "week"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestEnvOpen_ExpandsSummariesDir(t *testing.T) {
	e := setupTestEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	e.cfg.SummariesDir = "~/daybook"

	m, _, err := e.open(false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer m.Close()

	if got, want := m.Store().Dir(), filepath.Join(home, "daybook"); got != want {
		t.Errorf("summaries dir = %q, want %q", got, want)
	}
}

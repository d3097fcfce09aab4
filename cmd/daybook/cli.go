package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/daybook/internal/errors"
	"github.com/hpungsan/daybook/internal/mcp"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/ops"
	"github.com/hpungsan/daybook/internal/scan"
	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/summary"
	"github.com/hpungsan/daybook/internal/watch"
	"github.com/hpungsan/daybook/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "daybook",
		Usage:   "Daily activity and summaries from coding-assistant session logs",
		Version: Version,
		Commands: []*cli.Command{
			scanCmd(e),
			todayCmd(e),
			weekCmd(e),
			sessionsCmd(e),
			summaryCmd(e),
			generateCmd(e),
			backfillCmd(e),
			historyCmd(e),
			reportCmd(e),
			watchCmd(e),
			serveCmd(e),
			mcpCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// withMonitor opens a one-shot monitor for the duration of fn.
func withMonitor(e *env, fn func(m *monitor.Monitor) error) error {
	m, _, err := e.open(false)
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	defer m.Close()
	return fn(m)
}

// scanOutput is the result of the scan command.
type scanOutput struct {
	Root     string      `json:"root"`
	Projects int         `json:"projects"`
	Report   scan.Report `json:"report"`
}

// scanCmd creates the scan command.
func scanCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan session logs and report what was parsed",
		Action: func(c *cli.Context) error {
			m, loader, err := e.open(false)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer m.Close()

			st, err := m.Refresh(c.Context)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			dirs, err := loader.ProjectDirs()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(c.App.Writer, scanOutput{Root: loader.Root(), Projects: len(dirs), Report: st.Report})
		},
	}
}

// todayCmd creates the today command.
func todayCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "today",
		Usage: "Show today's statistics and summary",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "sessions", Aliases: []string{"s"}, Usage: "Include today's sessions"},
		},
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				output, err := ops.Today(c.Context, m, ops.TodayInput{IncludeSessions: c.Bool("sessions")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, output)
			})
		},
	}
}

// weekCmd creates the week command.
func weekCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "week",
		Usage: "Show statistics for the last seven days",
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				output, err := ops.Week(c.Context, m)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, output)
			})
		},
	}
}

// sessionsCmd creates the sessions command.
func sessionsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List one day's sessions, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Value: "today", Usage: "Day within the last week (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Filter by project name"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				output, err := ops.Sessions(c.Context, m, ops.SessionsInput{
					Date:    c.String("date"),
					Project: c.String("project"),
					Limit:   c.Int("limit"),
					Offset:  c.Int("offset"),
				})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, output)
			})
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Show a stored day summary",
		ArgsUsage: "[date]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "markdown", Aliases: []string{"md"}, Usage: "Print markdown instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				if _, err := m.Refresh(c.Context); err != nil {
					return outputError(errors.NewInternal(err))
				}
				output, err := ops.GetSummary(m, ops.GetSummaryInput{Date: c.Args().First()})
				if err != nil {
					return outputError(err)
				}
				if c.Bool("markdown") {
					_, err := io.WriteString(c.App.Writer, output.Markdown)
					return err
				}
				return outputJSON(c.App.Writer, output)
			})
		},
	}
}

// generateCmd creates the generate command.
func generateCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Summarize today and store the result",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Regenerate even when the summary is current"},
		},
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				var output *ops.GenerateOutput
				err := withSpinner(c.App.ErrWriter, " Summarizing today...", func() error {
					var err error
					output, err = ops.Generate(c.Context, m, ops.GenerateInput{Force: c.Bool("force")})
					return err
				})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, output)
			})
		},
	}
}

// backfillCmd creates the backfill command.
func backfillCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "Summarize past days of the last week that have sessions but no summary",
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				var output *ops.BackfillOutput
				err := withSpinner(c.App.ErrWriter, " Backfilling past days...", func() error {
					var err error
					output, err = ops.Backfill(c.Context, m)
					return err
				})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, output)
			})
		},
	}
}

// historyCmd creates the history command.
func historyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List stored past summaries, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				if _, err := m.Refresh(c.Context); err != nil {
					return outputError(errors.NewInternal(err))
				}
				output, err := ops.History(m, ops.HistoryInput{Limit: c.Int("limit"), Offset: c.Int("offset")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c.App.Writer, output)
			})
		},
	}
}

// reportCmd creates the report command.
func reportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print today's summary and the week at a glance",
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				today, err := ops.Today(c.Context, m, ops.TodayInput{IncludeSessions: true})
				if err != nil {
					return outputError(err)
				}
				week, err := ops.Week(c.Context, m)
				if err != nil {
					return outputError(err)
				}
				sum := today.Summary
				if sum == nil {
					sum = m.Store().Load(today.Date)
				}
				printReport(c.App.Writer, today, week, sum)
				return nil
			})
		},
	}
}

// watchCmd creates the watch command.
func watchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep today's summary current as session logs change",
		Action: func(c *cli.Context) error {
			return runLive(c, e, "")
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Watch session logs and serve the web view",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "Listen address (default from config)"},
		},
		Action: func(c *cli.Context) error {
			addr := c.String("addr")
			if addr == "" {
				addr = e.cfg.WebAddr
			}
			return runLive(c, e, addr)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			return withMonitor(e, func(m *monitor.Monitor) error {
				return mcp.Run(m, e.cfg, Version)
			})
		},
	}
}

// runLive watches the session root and keeps the monitor current until
// interrupted. A non-empty addr also serves the web view.
func runLive(c *cli.Context, e *env, addr string) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, loader, err := e.open(true)
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	defer m.Wait()
	defer m.Close()

	w, err := watch.New(loader.Root(), loader.ProjectDirs)
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	defer w.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })
	g.Go(func() error { return m.Run(ctx, w.Changes()) })
	g.Go(func() error {
		printUpdates(ctx, c.App.Writer, m)
		return nil
	})
	if addr != "" {
		srv := web.NewServer(m, Version, addr)
		g.Go(func() error { return web.Run(ctx, srv) })
	}

	if err := g.Wait(); err != nil {
		return outputError(errors.NewInternal(err))
	}
	return nil
}

var (
	titleColor   = color.New(color.FgHiCyan, color.Bold)
	successColor = color.New(color.FgHiGreen)
	infoColor    = color.New(color.FgHiWhite)
	dimColor     = color.New(color.FgHiBlack)
	warnColor    = color.New(color.FgHiYellow)
)

// printUpdates prints one status line whenever the published state changes
// in a way a person would notice.
func printUpdates(ctx context.Context, w io.Writer, m *monitor.Monitor) {
	updates, unsubscribe := m.Subscribe()
	defer unsubscribe()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
		}
		st := m.State()
		line := statusLine(st)
		if line == last {
			continue
		}
		last = line
		dimColor.Fprintf(w, "%s ", st.UpdatedAt.Local().Format("15:04:05"))
		if st.Error != "" {
			warnColor.Fprintf(w, "%s\n", line)
		} else {
			infoColor.Fprintf(w, "%s\n", line)
		}
	}
}

// statusLine renders the parts of st that the watch loop reports.
func statusLine(st *monitor.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d sessions, %s active",
		st.Today.Date, st.Today.TotalSessions, stats.FormatDuration(st.Today.ActiveDuration))
	switch {
	case st.Generating:
		b.WriteString(" | summarizing...")
	case st.Summary != nil:
		fmt.Fprintf(&b, " | %s", st.Summary.Headline)
	}
	if st.Backfilling {
		b.WriteString(" | backfilling")
	}
	if st.Error != "" {
		fmt.Fprintf(&b, " | error: %s", st.Error)
	}
	return b.String()
}

// printReport writes the human-readable report.
func printReport(w io.Writer, today *ops.TodayOutput, week *ops.WeekOutput, sum *summary.Summary) {
	titleColor.Fprintf(w, "  %s\n", today.Date)
	if sum != nil {
		successColor.Fprintf(w, "  %s", sum.Headline)
		if sum.Mood != "" {
			dimColor.Fprintf(w, "  (%s)", sum.Mood)
		}
		fmt.Fprintln(w)
		if sum.Narrative != "" {
			infoColor.Fprintf(w, "  %s\n", sum.Narrative)
		}
		for _, h := range sum.Highlights {
			infoColor.Fprintf(w, "    - %s\n", h)
		}
	} else {
		dimColor.Fprintf(w, "  No summary yet. Run 'daybook generate'.\n")
	}
	if today.Error != "" {
		warnColor.Fprintf(w, "  Last summary attempt failed: %s\n", today.Error)
	}

	fmt.Fprintln(w)
	infoColor.Fprintf(w, "  %d sessions, %d messages (%d from you), %s active\n",
		today.TotalSessions, today.TotalMessages, today.HumanMessages, today.ActiveTime)
	for _, p := range today.Projects {
		dimColor.Fprintf(w, "    %-24s %d\n", p.Project, p.Sessions)
	}
	for _, s := range today.Sessions {
		first := s.Summary
		if len(s.HumanTexts) > 0 {
			first = s.HumanTexts[0]
		}
		dimColor.Fprintf(w, "    %s  %-16s %s\n", clock(s.Start), s.ProjectName, oneLine(first, 60))
	}

	fmt.Fprintln(w)
	titleColor.Fprintf(w, "  Last 7 days\n")
	for _, d := range week.Days {
		mark := " "
		if d.HasSummary {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %s  %3d sessions  %s\n", mark, d.Date, d.TotalSessions, d.ActiveTime)
	}
	dimColor.Fprintf(w, "  %d sessions, %s active this week\n", week.TotalSessions, week.ActiveTime)
}

// withSpinner shows a spinner on w while fn runs.
func withSpinner(w io.Writer, suffix string, fn func() error) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = suffix
	_ = s.Color("cyan")
	s.Start()
	defer s.Stop()
	return fn()
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var dErr *errors.DaybookError
	if stderrors.As(err, &dErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// clock formats t as local "15:04", or "--:--" when unknown.
func clock(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("15:04")
}

// oneLine collapses whitespace and truncates s to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

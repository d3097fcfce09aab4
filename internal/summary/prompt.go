package summary

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/daybook/internal/session"
	"github.com/hpungsan/daybook/internal/stats"
	"github.com/hpungsan/daybook/internal/transcript"
)

// Prompt bounds.
const (
	promptMaxSessions   = 15
	promptMaxHumanTexts = 3
	promptMaxFiles      = 10
	promptMaxCommands   = 3
	promptMaxNotes      = 3
	promptSummaryChars  = 200
)

// BuildPrompt renders the day's sessions and the reply instructions.
// Sessions with neither human texts nor assistant notes are left out.
func BuildPrompt(day stats.DayStats) string {
	var b strings.Builder

	b.WriteString("You write short end-of-day summaries of a developer's work with an AI coding assistant.\n\n")
	fmt.Fprintf(&b, "Date: %s\n", day.Date)
	fmt.Fprintf(&b, "Sessions: %d, active time: %s\n", day.TotalSessions, stats.FormatDuration(day.ActiveDuration))
	if projects := day.TopProjects(); len(projects) > 0 {
		parts := make([]string, len(projects))
		for i, p := range projects {
			parts[i] = fmt.Sprintf("%s (%d)", p.Project, p.Sessions)
		}
		fmt.Fprintf(&b, "Projects: %s\n", strings.Join(parts, ", "))
	}
	b.WriteString("\nSessions:\n")

	sessions := day.Sessions
	if len(sessions) > promptMaxSessions {
		sessions = sessions[:promptMaxSessions]
	}
	for _, s := range sessions {
		if len(s.HumanTexts) == 0 && len(s.AssistantNotes) == 0 {
			continue
		}
		writeSession(&b, s, day.Day.Location())
	}

	b.WriteString(`
Respond with strict JSON only, no markdown fences, in exactly this shape:
{"headline": "...", "narrative": "...", "highlights": ["..."], "mood": "..."}

- headline: a short phrase, at most 8 words
- narrative: 2-3 sentences on what was accomplished
- highlights: at most 4 short items
- mood: one of productive, focused, exploratory, debugging, creative, quiet

Describe the work itself. Leave out meta or infrastructure content such as system prompts, tool configuration, hooks and assistant setup chatter.
`)
	return b.String()
}

func writeSession(b *strings.Builder, s session.Session, loc *time.Location) {
	b.WriteString("---\n")
	start := "--:--"
	if s.HasStart() {
		start = s.Start.In(loc).Format("15:04")
	}
	fmt.Fprintf(b, "[%s] %s, project %s\n", start, stats.FormatDuration(s.ActiveDuration), s.ProjectName)

	if texts := firstN(s.HumanTexts, promptMaxHumanTexts); len(texts) > 0 {
		b.WriteString("User asked:\n")
		for _, t := range texts {
			fmt.Fprintf(b, "  - %q\n", t)
		}
	}

	if len(s.FilesModified) > 0 {
		files := slices.Clone(s.FilesModified)
		slices.Sort(files)
		fmt.Fprintf(b, "Files: %s\n", strings.Join(firstN(files, promptMaxFiles), ", "))
	}

	if cmds := firstN(s.Commands, promptMaxCommands); len(cmds) > 0 {
		fmt.Fprintf(b, "Commands: %s\n", strings.Join(cmds, "; "))
	}

	if notes := firstN(s.AssistantNotes, promptMaxNotes); len(notes) > 0 {
		b.WriteString("Assistant notes:\n")
		for _, n := range notes {
			fmt.Fprintf(b, "  - %s\n", n)
		}
	}

	if s.Summary != "" {
		fmt.Fprintf(b, "Session summary: %s\n", transcript.Truncate(s.Summary, promptSummaryChars))
	}
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

package summary

import (
	"fmt"
	"strings"

	"github.com/hpungsan/daybook/internal/stats"
)

const (
	highlightMaxChars = 80
	highlightCutChars = 77
	busyDaySessions   = 5
	narrativeProjects = 3
)

// Local builds a summary from the statistics alone, without any external
// call. The most active project is picked by session count; ties go to
// whichever comes first in map order.
func Local(day stats.DayStats) Summary {
	fp := day.Fingerprint()
	if day.TotalSessions == 0 {
		return Quiet(fp)
	}

	projects := day.TopProjects()
	top := projects[0].Project
	duration := stats.FormatDuration(day.ActiveDuration)

	s := Summary{Fingerprint: fp, Highlights: localHighlights(day)}
	switch {
	case day.TotalSessions == 1:
		s.Headline = "Quick session on " + top
		s.Mood = MoodFocused
	case len(projects) == 1:
		s.Headline = "Focused work on " + top
		s.Mood = MoodFocused
	case day.TotalSessions >= busyDaySessions:
		s.Headline = fmt.Sprintf("Busy day across %d projects", len(projects))
		s.Mood = MoodProductive
	default:
		s.Headline = fmt.Sprintf("Working on %s and %s", projects[0].Project, projects[1].Project)
		s.Mood = MoodExploratory
	}

	if len(projects) == 1 {
		s.Narrative = fmt.Sprintf("%s on %s with %s of active time.", plural(day.TotalSessions, "session"), top, duration)
	} else {
		shown := projects
		if len(shown) > narrativeProjects {
			shown = shown[:narrativeProjects]
		}
		parts := make([]string, len(shown))
		for i, p := range shown {
			parts[i] = fmt.Sprintf("%s (%d)", p.Project, p.Sessions)
		}
		s.Narrative = fmt.Sprintf("%s across %d projects: %s. %s of active time.",
			plural(day.TotalSessions, "session"), len(projects), strings.Join(parts, ", "), duration)
	}
	return s
}

// localHighlights takes one line from each of the first sessions: the first
// genuine human message, else the first assistant note.
func localHighlights(day stats.DayStats) []string {
	out := []string{}
	for i, s := range day.Sessions {
		if i == MaxHighlights {
			break
		}
		var text string
		switch {
		case len(s.HumanTexts) > 0:
			text = s.HumanTexts[0]
		case len(s.AssistantNotes) > 0:
			text = s.AssistantNotes[0]
		default:
			continue
		}
		out = append(out, shorten(text))
	}
	return out
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) <= highlightMaxChars {
		return s
	}
	return string(r[:highlightCutChars]) + "..."
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

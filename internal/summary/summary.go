// Package summary turns a day's statistics into a short narrative, either via
// a text-generation endpoint or by local rules.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/daybook/internal/stats"
)

// Mood classifies the character of a day.
type Mood string

const (
	MoodProductive  Mood = "productive"
	MoodFocused     Mood = "focused"
	MoodExploratory Mood = "exploratory"
	MoodDebugging   Mood = "debugging"
	MoodCreative    Mood = "creative"
	MoodQuiet       Mood = "quiet"
)

// Moods lists every valid mood.
var Moods = []Mood{MoodProductive, MoodFocused, MoodExploratory, MoodDebugging, MoodCreative, MoodQuiet}

// ParseMood returns the mood named by s, case-insensitively.
func ParseMood(s string) (Mood, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range Moods {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// MaxHighlights caps Summary.Highlights.
const MaxHighlights = 4

// Summary is the stored description of one calendar day.
type Summary struct {
	Headline    string   `json:"headline"`
	Narrative   string   `json:"narrative"`
	Highlights  []string `json:"highlights"`
	Mood        Mood     `json:"mood"`
	Fingerprint string   `json:"fingerprint"`
}

// Markdown renders the summary as a small markdown document.
func (s *Summary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", s.Headline)
	if s.Narrative != "" {
		fmt.Fprintf(&b, "%s\n\n", s.Narrative)
	}
	for _, h := range s.Highlights {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	return b.String()
}

// TextGenerator produces a completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Quiet is the canned summary for a day without sessions.
func Quiet(fingerprint string) Summary {
	return Summary{
		Headline:    "No sessions today",
		Narrative:   "No coding sessions were recorded.",
		Highlights:  []string{},
		Mood:        MoodQuiet,
		Fingerprint: fingerprint,
	}
}

// Generate summarizes day. A day without sessions yields Quiet and no call.
// A nil gen yields the local summary. When the call fails the local summary
// is returned together with the error, so callers always have a result.
func Generate(ctx context.Context, gen TextGenerator, day stats.DayStats) (Summary, error) {
	fp := day.Fingerprint()
	if day.TotalSessions == 0 {
		return Quiet(fp), nil
	}
	if gen == nil {
		return Local(day), nil
	}

	text, err := gen.Generate(ctx, BuildPrompt(day))
	if err != nil {
		return Local(day), err
	}
	return ParseReply(text, fp), nil
}

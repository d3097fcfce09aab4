package session

import (
	"bytes"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hpungsan/daybook/internal/transcript"
)

// Parse reads the full content of one log file. It returns nil when the file
// holds one message or fewer. file-history-snapshot lines are not messages.
//
// Start and End are the earliest and latest timestamps seen. A gap is measured
// against the latest timestamp so far, so out-of-order lines never add time
// and ActiveDuration never exceeds End-Start.
func Parse(content []byte, f *transcript.Filters) *Session {
	if f == nil {
		f = transcript.DefaultFilters()
	}

	s := &Session{}
	var latest time.Time

	for len(content) > 0 {
		var line []byte
		line, content, _ = bytes.Cut(content, []byte{'\n'})
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		rec := transcript.Classify(line)
		if rec.Type == transcript.TypeFileHistorySnapshot {
			continue
		}
		s.MessageCount++

		if rec.HasTimestamp() {
			ts := rec.Timestamp
			if s.Start.IsZero() || ts.Before(s.Start) {
				s.Start = ts
			}
			if !latest.IsZero() {
				if gap := ts.Sub(latest); gap > 0 && gap <= MaxGap {
					s.ActiveDuration += gap
				}
			}
			if latest.IsZero() || ts.After(latest) {
				latest = ts
			}
			s.End = latest
		}

		if s.Cwd == "" && rec.Cwd != "" {
			s.Cwd = rec.Cwd
		}

		switch rec.Type {
		case transcript.TypeUser:
			s.addUser(rec.Message, f)
		case transcript.TypeAssistant:
			s.addAssistant(rec.Message, f)
		case transcript.TypeSummary:
			text := rec.Summary
			if text == "" {
				text = transcript.FirstText(rec.Message)
			}
			if text = strings.TrimSpace(text); text != "" {
				s.Summary = transcript.Truncate(text, MaxSummaryChars)
			}
		}
	}

	if s.MessageCount <= 1 {
		return nil
	}
	s.FilesModified = lo.Uniq(s.FilesModified)
	return s
}

func (s *Session) addUser(m *transcript.Message, f *transcript.Filters) {
	text, ok := transcript.HumanText(m)
	if !ok || !f.IsGenuineHumanInput(text) {
		return
	}
	s.HumanMessages++
	if len(s.HumanTexts) < MaxHumanTexts {
		s.HumanTexts = append(s.HumanTexts, transcript.Truncate(strings.TrimSpace(text), MaxHumanTextChars))
	}
}

func (s *Session) addAssistant(m *transcript.Message, f *transcript.Filters) {
	s.AssistantMessages++

	text := strings.TrimSpace(transcript.AssistantText(m))
	if f.IsSubstantiveAssistantText(text) {
		if len(s.AssistantNotes) >= MaxNotes {
			s.AssistantNotes = s.AssistantNotes[1:]
		}
		s.AssistantNotes = append(s.AssistantNotes, transcript.Truncate(text, MaxNoteChars))
	}

	for _, tu := range transcript.ToolUses(m) {
		if p, ok := f.FilePath(tu); ok {
			s.FilesModified = append(s.FilesModified, p)
		}
		if c, ok := f.Command(tu); ok && len(s.Commands) < MaxCommands {
			s.Commands = append(s.Commands, c)
		}
	}
}

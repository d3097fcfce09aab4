// Package session reconstructs one conversation record from a session log file.
package session

import (
	"time"
)

// Bounds on the content kept per session.
const (
	MaxHumanTexts     = 10
	MaxHumanTextChars = 300
	MaxNotes          = 5
	MaxNoteChars      = 200
	MaxCommands       = 5
	MaxSummaryChars   = 400

	// MaxGap is the largest gap between consecutive records that still counts
	// as active time.
	MaxGap = 30 * time.Minute
)

// Session is one conversation log file reduced to timing and content.
type Session struct {
	ID          string `json:"id"`
	ProjectPath string `json:"project_path"`
	ProjectName string `json:"project_name"`

	// Start and End are zero when the file carried no timestamps.
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`

	// ActiveDuration sums inter-record gaps of at most MaxGap.
	ActiveDuration time.Duration `json:"active_duration"`

	MessageCount      int `json:"message_count"`
	HumanMessages     int `json:"human_messages"`
	AssistantMessages int `json:"assistant_messages"`

	// HumanTexts keeps the first MaxHumanTexts genuine messages.
	HumanTexts []string `json:"human_texts,omitempty"`

	// AssistantNotes keeps the most recent MaxNotes substantive notes.
	AssistantNotes []string `json:"assistant_notes,omitempty"`

	FilesModified []string `json:"files_modified,omitempty"`
	Commands      []string `json:"commands,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Cwd           string   `json:"cwd,omitempty"`
}

// HasStart reports whether the session has a start time and can be bucketed by day.
func (s *Session) HasStart() bool {
	return !s.Start.IsZero()
}

// Retained reports whether a parsed session is worth surfacing: at least one
// genuine human message, or more than one assistant message.
func Retained(s *Session) bool {
	if s == nil {
		return false
	}
	return s.HumanMessages > 0 || s.AssistantMessages > 1
}

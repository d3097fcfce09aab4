// Package transcript decodes single lines of a coding-assistant session log and
// extracts the human text, assistant notes, file paths and shell commands they carry.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordType is the semantic type of one log line.
type RecordType string

const (
	TypeUser                RecordType = "user"
	TypeAssistant           RecordType = "assistant"
	TypeSummary             RecordType = "summary"
	TypeProgress            RecordType = "progress"
	TypeQueueOperation      RecordType = "queue-operation"
	TypeFileHistorySnapshot RecordType = "file-history-snapshot"
	TypeOther               RecordType = "other"
	TypeUnparsed            RecordType = "unparsed" // line failed to decode
)

// Block types inside a message content list.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Record is one classified log line.
type Record struct {
	Type      RecordType
	Timestamp time.Time // zero when the line has none
	Message   *Message
	Summary   string // top-level "summary" field of summary records
	Cwd       string
}

// HasTimestamp reports whether the line carried a parseable timestamp.
func (r Record) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// Message is the structured payload of user, assistant and summary records.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content is either plain text or an ordered list of typed blocks.
type Content struct {
	Plain  bool
	Text   string
	Blocks []Block
}

// UnmarshalJSON decodes the string-or-list union. Any other shape is an error,
// which makes the whole line unparsed.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		c.Plain = true
		return json.Unmarshal(data, &c.Text)
	case '[':
		return json.Unmarshal(data, &c.Blocks)
	default:
		return fmt.Errorf("content: unsupported JSON shape %q", data[0])
	}
}

// Block is one element of a content list. Input is kept raw and only decoded
// for tool_use blocks.
type Block struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// envelope is the subset of a log line that full decoding looks at.
type envelope struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	Message   *Message `json:"message"`
	Summary   string   `json:"summary"`
	Cwd       string   `json:"cwd"`
}

// Classify turns one raw line into a Record. It never fails: undecodable lines
// come back as TypeUnparsed.
//
// progress and queue-operation lines are high volume and carry nothing the
// parser needs beyond a timestamp, so they are recognised and scanned from the
// line's own top-level keys without a JSON decode. file-history-snapshot lines
// are recognised the same way and carry nothing at all. Keys inside nested
// objects, such as a tool_use input, never select the cheap path.
func Classify(line []byte) Record {
	typ, _ := topLevelString(line, "type")
	switch t := RecordType(typ); t {
	case TypeFileHistorySnapshot:
		return Record{Type: t}
	case TypeProgress, TypeQueueOperation:
		return Record{Type: t, Timestamp: scanTimestamp(line)}
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Record{Type: TypeUnparsed}
	}

	rec := Record{
		Type:      recordType(env.Type),
		Timestamp: ParseTimestamp(env.Timestamp),
		Message:   env.Message,
		Summary:   env.Summary,
		Cwd:       env.Cwd,
	}
	return rec
}

func recordType(s string) RecordType {
	switch RecordType(s) {
	case TypeUser, TypeAssistant, TypeSummary, TypeProgress, TypeQueueOperation, TypeFileHistorySnapshot:
		return RecordType(s)
	default:
		return TypeOther
	}
}

// scanTimestamp pulls the top-level "timestamp" string value out of a raw line.
func scanTimestamp(line []byte) time.Time {
	v, ok := topLevelString(line, "timestamp")
	if !ok {
		return time.Time{}
	}
	return ParseTimestamp(v)
}

// topLevelString returns the string value of key in the outermost object of
// line, skipping nested objects, arrays and the contents of strings. Values
// are returned raw, without unescaping.
func topLevelString(line []byte, key string) (string, bool) {
	depth := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case '"':
			end := stringEnd(line, i)
			if end < 0 {
				return "", false
			}
			if depth == 1 && string(line[i+1:end]) == key {
				j := skipSpace(line, end+1)
				if j < len(line) && line[j] == ':' {
					j = skipSpace(line, j+1)
					if j >= len(line) || line[j] != '"' {
						return "", false
					}
					vend := stringEnd(line, j)
					if vend < 0 {
						return "", false
					}
					return string(line[j+1 : vend]), true
				}
			}
			i = end
		}
	}
	return "", false
}

// stringEnd returns the index of the quote closing the string that opens at
// start, or -1 when the line ends first.
func stringEnd(line []byte, start int) int {
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func skipSpace(line []byte, i int) int {
	for i < len(line) && (line[i] == ' ' || line[i] == '\t' || line[i] == '\r' || line[i] == '\n') {
		i++
	}
	return i
}

// ParseTimestamp parses an ISO-8601 instant with or without fractional seconds.
// Unparseable input returns the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	// RFC3339Nano accepts a missing fractional part.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

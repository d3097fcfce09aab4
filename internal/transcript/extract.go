package transcript

import (
	"encoding/json"
	"path"
	"strings"
)

// HumanText returns the user-typed text of a user message. A block list that
// contains any tool_result block is tool plumbing and yields no text, even if
// text blocks ride along with it.
func HumanText(m *Message) (string, bool) {
	if m == nil {
		return "", false
	}
	if m.Content.Plain {
		return m.Content.Text, m.Content.Text != ""
	}
	var parts []string
	for _, b := range m.Content.Blocks {
		switch b.Type {
		case BlockToolResult:
			return "", false
		case BlockText:
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

// AssistantText returns the plain content or the text blocks joined by spaces.
func AssistantText(m *Message) string {
	if m == nil {
		return ""
	}
	if m.Content.Plain {
		return m.Content.Text
	}
	var parts []string
	for _, b := range m.Content.Blocks {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

// FirstText returns the plain content or the first text block.
func FirstText(m *Message) string {
	if m == nil {
		return ""
	}
	if m.Content.Plain {
		return m.Content.Text
	}
	for _, b := range m.Content.Blocks {
		if b.Type == BlockText {
			return b.Text
		}
	}
	return ""
}

// ToolUse is the part of a tool_use block the session parser cares about.
type ToolUse struct {
	Name     string
	FilePath string
	Path     string
	Command  string
}

// ToolUses returns the tool_use blocks of a message. Input fields that are not
// strings are ignored rather than failing the block.
func ToolUses(m *Message) []ToolUse {
	if m == nil || m.Content.Plain {
		return nil
	}
	var out []ToolUse
	for _, b := range m.Content.Blocks {
		if b.Type != BlockToolUse {
			continue
		}
		tu := ToolUse{Name: b.Name}
		var input map[string]json.RawMessage
		if len(b.Input) > 0 && json.Unmarshal(b.Input, &input) == nil {
			tu.FilePath = stringField(input, "file_path")
			tu.Path = stringField(input, "path")
			tu.Command = stringField(input, "command")
		}
		out = append(out, tu)
	}
	return out
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// FilePath returns the shortened path a tool call touched, if it is a
// source or config file.
func (f *Filters) FilePath(tu ToolUse) (string, bool) {
	p := tu.FilePath
	if p == "" {
		p = tu.Path
	}
	if p == "" {
		return "", false
	}
	if !f.isSourceExtension(path.Ext(p)) {
		return "", false
	}
	return ShortenPath(p), true
}

// Command returns the shell command of a bash tool call, unless it is trivial.
func (f *Filters) Command(tu ToolUse) (string, bool) {
	if !strings.Contains(strings.ToLower(tu.Name), "bash") {
		return "", false
	}
	fields := strings.Fields(tu.Command)
	if len(fields) == 0 {
		return "", false
	}
	if f.isBoringCommand(path.Base(fields[0])) {
		return "", false
	}
	return Truncate(strings.TrimSpace(tu.Command), f.MaxCommandChars), true
}

// ShortenPath reduces a path to "parentDir/filename".
func ShortenPath(p string) string {
	p = strings.TrimRight(p, "/")
	base := path.Base(p)
	dir := path.Base(path.Dir(p))
	if dir == "." || dir == "/" || dir == "" {
		return base
	}
	return dir + "/" + base
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

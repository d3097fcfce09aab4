package summary

import (
	"encoding/json"
	"strings"

	"github.com/hpungsan/daybook/internal/transcript"
)

const (
	fallbackHeadline  = "Day summary"
	rawNarrativeChars = 300
)

// ParseReply decodes the endpoint's JSON reply. It never fails: a reply that
// is not a JSON object becomes a summary whose narrative is the start of the
// raw text. Missing or mistyped fields get defaults, and an unknown mood
// becomes productive.
func ParseReply(text, fingerprint string) Summary {
	cleaned := stripFences(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil || fields == nil {
		return Summary{
			Headline:    fallbackHeadline,
			Narrative:   transcript.Truncate(cleaned, rawNarrativeChars),
			Highlights:  []string{},
			Mood:        MoodProductive,
			Fingerprint: fingerprint,
		}
	}

	s := Summary{
		Headline:    strings.TrimSpace(stringField(fields, "headline")),
		Narrative:   strings.TrimSpace(stringField(fields, "narrative")),
		Highlights:  highlightsField(fields),
		Mood:        MoodProductive,
		Fingerprint: fingerprint,
	}
	if s.Headline == "" {
		s.Headline = fallbackHeadline
	}
	if m, ok := ParseMood(stringField(fields, "mood")); ok {
		s.Mood = m
	}
	return s
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = strings.TrimPrefix(rest, "json")
		s = strings.TrimPrefix(s, "JSON")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func highlightsField(fields map[string]json.RawMessage) []string {
	out := []string{}
	raw, ok := fields["highlights"]
	if !ok {
		return out
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, item := range items {
		var h string
		if json.Unmarshal(item, &h) != nil {
			continue
		}
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
		if len(out) == MaxHighlights {
			break
		}
	}
	return out
}

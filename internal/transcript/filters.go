package transcript

import (
	"slices"
	"strings"
)

// Filters holds the heuristic word lists used to tell genuine text from
// tooling noise. They are plain data so they can be tuned from config and
// tested apart from the parser.
type Filters struct {
	// MinHumanChars is the minimum trimmed length of a genuine human message.
	MinHumanChars int

	// MinAssistantChars is the length an assistant note must exceed.
	MinAssistantChars int

	// MaxCommandChars caps a retained shell command.
	MaxCommandChars int

	// InterruptionMarkers are exact strings the assistant writes when the user interrupts it.
	InterruptionMarkers []string

	// BoilerplatePrefixes reject human text that starts with UI boilerplate.
	BoilerplatePrefixes []string

	// NoiseSubstrings reject human text that contains command wrappers,
	// hook feedback or meta instructions.
	NoiseSubstrings []string

	// NarrationPrefixes reject low-information assistant text (lower-case).
	NarrationPrefixes []string

	// SourceExtensions is the allow-list for modified files, without the dot.
	SourceExtensions []string

	// BoringCommands are first tokens of shell commands not worth reporting.
	BoringCommands []string
}

// DefaultFilters returns the built-in lists.
func DefaultFilters() *Filters {
	return &Filters{
		MinHumanChars:     5,
		MinAssistantChars: 50,
		MaxCommandChars:   120,
		InterruptionMarkers: []string{
			"[Request interrupted by user]",
			"[Request interrupted by user for tool use]",
		},
		BoilerplatePrefixes: []string{
			"Caveat:",
			"[Request interrupted",
			"<command-name>",
			"<command-message>",
			"<local-command-stdout>",
			"<local-command-stderr>",
			"<local-command-caveat>",
			"<bash-input>",
			"<bash-stdout>",
			"<bash-stderr>",
			"This session is being continued from a previous conversation",
			"API Error:",
		},
		NoiseSubstrings: []string{
			"<command-name>",
			"<command-args>",
			"<system-reminder>",
			"<user-prompt-submit-hook>",
			"<local-command-",
			"hook feedback:",
			"PreToolUse:",
			"PostToolUse:",
			"Stop hook feedback",
			"Your task is to create a detailed summary of the conversation",
			"Please continue the conversation from where we left",
			"Please analyze this codebase and create a CLAUDE.md",
		},
		NarrationPrefixes: []string{
			"let me check",
			"let me look",
			"let me read",
			"let me search",
			"let me see",
			"let me run",
			"let me first",
			"let me find",
			"let me verify",
			"i'll check",
			"i'll search",
			"i'll read",
			"i'll look",
			"i'll run",
			"i'll start by",
			"now let me",
			"now i'll",
			"first, let me",
		},
		SourceExtensions: []string{
			"go", "swift", "m", "mm", "h", "c", "cc", "cpp", "hpp", "cs",
			"rs", "py", "rb", "java", "kt", "kts", "scala", "clj", "ex", "exs",
			"js", "jsx", "ts", "tsx", "mjs", "cjs", "vue", "svelte", "astro",
			"html", "css", "scss", "sass", "less",
			"php", "lua", "dart", "zig", "hs", "ml", "r", "jl",
			"sh", "bash", "zsh", "fish", "sql", "proto", "graphql", "gql",
			"json", "yaml", "yml", "toml", "xml", "plist", "ini", "conf", "env",
			"md", "mdx", "txt", "gradle", "tf", "hcl", "nix", "mod", "sum",
		},
		BoringCommands: []string{
			"ls", "cat", "echo", "cd", "pwd", "head", "tail", "less", "more",
			"grep", "rg", "find", "fd", "which", "wc", "clear", "true", "sleep",
			"tree", "file", "stat", "date", "whoami", "env", "printenv", "open",
			"mkdir", "touch", "sort", "uniq", "diff",
		},
	}
}

// Extend returns a copy of f with extra entries appended to the noise,
// boring-command and extension lists.
func (f *Filters) Extend(noise, boring, extensions []string) *Filters {
	out := *f
	out.NoiseSubstrings = append(slices.Clone(f.NoiseSubstrings), noise...)
	out.BoringCommands = append(slices.Clone(f.BoringCommands), boring...)
	out.SourceExtensions = append(slices.Clone(f.SourceExtensions), extensions...)
	return &out
}

// IsGenuineHumanInput reports whether s looks like text a person typed.
func (f *Filters) IsGenuineHumanInput(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len([]rune(trimmed)) < f.MinHumanChars {
		return false
	}
	if slices.Contains(f.InterruptionMarkers, trimmed) {
		return false
	}
	for _, p := range f.BoilerplatePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return false
		}
	}
	for _, n := range f.NoiseSubstrings {
		if strings.Contains(trimmed, n) {
			return false
		}
	}

	// Injected XML or JSON masquerading as user text: lots of markup relative
	// to the number of words.
	markup := strings.Count(trimmed, "<") + strings.Count(trimmed, "{")
	words := len(strings.Fields(trimmed))
	if markup > 5 && markup*2 > words {
		return false
	}
	return true
}

// IsSubstantiveAssistantText reports whether s says more than "let me check".
func (f *Filters) IsSubstantiveAssistantText(s string) bool {
	if len([]rune(s)) <= f.MinAssistantChars {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, p := range f.NarrationPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

func (f *Filters) isSourceExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return false
	}
	for _, e := range f.SourceExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func (f *Filters) isBoringCommand(name string) bool {
	return slices.Contains(f.BoringCommands, name)
}

package session

import (
	"strings"
	"unicode"
)

// CommonFolders are parent-folder names stripped from the front of a project
// name. Only the first match is removed.
var CommonFolders = []string{
	"Documents", "Projects", "projects", "Developer", "Code", "code",
	"src", "repos", "dev", "workspace", "work", "GitHub", "github", "git", "Desktop",
}

// EncodePath encodes a filesystem path the way the assistant names its
// project directories: every rune that is not a letter, digit or '-' becomes '-'.
func EncodePath(p string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '-'
	}, p)
}

// ProjectName derives a display name from an encoded project directory name:
// the encoded home prefix is removed, then leading '-', then the first common
// parent-folder fragment. If nothing is left the encoded name is returned as-is.
func ProjectName(encodedDir, home string) string {
	name := encodedDir
	if home != "" {
		name = strings.TrimPrefix(name, EncodePath(strings.TrimRight(home, "/")))
	}
	name = strings.TrimLeft(name, "-")
	for _, folder := range CommonFolders {
		if rest, ok := strings.CutPrefix(name, folder+"-"); ok {
			name = rest
			break
		}
	}
	if name == "" {
		return encodedDir
	}
	return name
}

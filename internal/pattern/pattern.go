// Package pattern implements placeholder expansion and allowlist matching
// for file-scoped command and pattern templates.
//
// Templates may contain the placeholders {file}, {file_stem}, and {file_dir},
// which are substituted with components of a concrete file path before the
// resulting string is handed to an external command or used as an allowlist.
package pattern

import (
	"path/filepath"
	"strings"
)

// Stem returns the file name without its extension, additionally stripping
// the common ".test" and ".spec" suffixes so that "parser.test.ts" and
// "parser.ts" share the stem "parser".
func Stem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if s, ok := strings.CutSuffix(stem, ".test"); ok {
		return s
	}
	if s, ok := strings.CutSuffix(stem, ".spec"); ok {
		return s
	}
	return stem
}

// Expand substitutes {file}, {file_stem}, and {file_dir} in template with the
// corresponding components of path. A path with no directory component yields
// an empty {file_dir}.
func Expand(template, path string) string {
	dir := filepath.Dir(path)
	if dir == "." {
		dir = ""
	}

	r := strings.NewReplacer(
		"{file}", path,
		"{file_stem}", Stem(path),
		"{file_dir}", dir,
	)
	return r.Replace(template)
}

// Match reports whether path matches an already-expanded allowlist pattern.
//
// A trailing "*" matches any path that has a component starting with the
// prefix before the star, or whose full path contains that prefix. A pattern
// without a star matches any path that contains it as a substring. This is
// deliberately permissive: the allowlist restricts an agent that edits
// related files (tests, snapshots) next to the target file.
func Match(path, pattern string) bool {
	if pattern == "" {
		return false
	}

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		for _, component := range strings.Split(filepath.ToSlash(path), "/") {
			if strings.HasPrefix(component, prefix) {
				return true
			}
		}
		return strings.Contains(path, prefix)
	}

	return strings.Contains(path, pattern)
}

// MatchAny reports whether path matches at least one of the patterns.
func MatchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if Match(path, p) {
			return true
		}
	}
	return false
}

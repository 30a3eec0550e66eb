// Package guard decides whether the changes produced by a pipeline step were
// authorized. It is a pure decision function: the git collaborator supplies
// the set of modified paths and the pre-run baseline, and the guard only
// classifies them against the allowlist.
package guard

import (
	"fmt"
	"strings"

	"github.com/harrison/fileloop/internal/pattern"
)

// Result classifies the paths modified since a step began.
type Result struct {
	// Allowed holds modified paths covered by the allowlist or the baseline.
	Allowed []string

	// Unauthorized holds modified paths matching neither the allowlist nor
	// the pre-run baseline. Any entry here vetoes completion.
	Unauthorized []string
}

// OK reports whether the transition to Completed may proceed.
func (r Result) OK() bool {
	return len(r.Unauthorized) == 0
}

// Violation renders the unauthorized paths as a last_error detail.
func (r Result) Violation() string {
	return fmt.Sprintf("unauthorized changes outside allowlist: %s", strings.Join(r.Unauthorized, ", "))
}

// Check classifies every modified path. A path is authorized when it matches
// at least one allowlist pattern, or when it appears in baseline (it was
// already dirty before the run started, so this run did not touch it first).
// Patterns must already have their placeholders expanded.
func Check(allowlist, modified, baseline []string) Result {
	exempt := make(map[string]bool, len(baseline))
	for _, p := range baseline {
		exempt[p] = true
	}

	var res Result
	for _, path := range modified {
		if exempt[path] || pattern.MatchAny(path, allowlist) {
			res.Allowed = append(res.Allowed, path)
			continue
		}
		res.Unauthorized = append(res.Unauthorized, path)
	}
	return res
}

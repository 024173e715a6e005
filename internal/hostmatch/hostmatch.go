// Package hostmatch provides the default implementation of the
// hostname-glob-matching collaborator used to evaluate the disallowed
// hostname list (Interception Decider) and the allowed hostname list
// (Response Capturer).
//
// No glob-matching library (gobwas/glob, ryanuber/go-glob, doublestar, or
// similar) appears anywhere in this codebase's dependency graph or its
// sibling projects; every example that matches URLs by pattern does so
// with stdlib net/url and strings directly. path.Match implements the same
// shell-glob syntax the allowed/disallowed hostname lists use (e.g.
// "ads.*"), so it is adopted directly instead of introducing an unseen
// dependency. See DESIGN.md for the full justification this stdlib choice
// requires.
package hostmatch

import (
	"path"
	"strings"
)

// Matcher matches a hostname against a fixed set of glob patterns.
type Matcher struct {
	patterns []string
}

// New builds a Matcher from a set of glob patterns. Patterns and input
// hostnames are compared case-insensitively.
func New(patterns []string) *Matcher {
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &Matcher{patterns: lowered}
}

// Match reports whether hostname matches any configured pattern.
func (m *Matcher) Match(hostname string) bool {
	hostname = strings.ToLower(hostname)
	for _, pattern := range m.patterns {
		if ok, err := path.Match(pattern, hostname); err == nil && ok {
			return true
		}
	}
	return false
}

// SPDX-License-Identifier: AGPL-3.0-or-later

// Package marker is a heuristic leak detector for rendered skill output.
// It reports which rules fired, never the matched text.
package marker

import "regexp"

// Rule is one named marker pattern. Name is the pattern source reported in
// results.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// NewRule compiles a rule. When fold is set the match is case-insensitive;
// the reported name stays the bare source.
func NewRule(source string, fold bool) Rule {
	expr := source
	if fold {
		expr = "(?i)" + source
	}
	return Rule{Name: source, Pattern: regexp.MustCompile(expr)}
}

// DefaultRules returns the built-in markers in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		NewRule(`CONFIDENTIAL`, true),
		NewRule(`SECRET`, true),
		NewRule(`PRIVATE`, true),
		NewRule(`API[_-]?KEY`, true),
		NewRule(`PASSWORD`, true),
		NewRule(`TOKEN`, true),
		NewRule(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`, false),
	}
}

// Result lists the rules that matched at least once.
type Result struct {
	HasMarkers bool     `json:"hasMarkers"`
	Markers    []string `json:"markers"`
}

// Scanner applies an ordered rule list.
type Scanner struct {
	rules []Rule
}

// New returns a scanner over rules, or over DefaultRules when none are given.
func New(rules ...Rule) *Scanner {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Scanner{rules: rules}
}

// Rules returns the rules in evaluation order.
func (s *Scanner) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Scan reports every rule that matches content.
func (s *Scanner) Scan(content string) Result {
	found := []string{}
	for _, r := range s.rules {
		if r.Pattern.MatchString(content) {
			found = append(found, r.Name)
		}
	}
	return Result{HasMarkers: len(found) > 0, Markers: found}
}

var defaultScanner = New()

// Scan runs the default rules.
func Scan(content string) Result {
	return defaultScanner.Scan(content)
}

// SPDX-License-Identifier: AGPL-3.0-or-later

package skillerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// Kind tags the shape a failure arrived in.
type Kind int

const (
	// KindSkillError is an *Error anywhere in the chain.
	KindSkillError Kind = iota
	// KindPlainError is any other error value.
	KindPlainError
	// KindString is a panic with a string payload.
	KindString
	// KindUnknown is a panic with any other payload.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindSkillError:
		return "skill_error"
	case KindPlainError:
		return "plain_error"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Failure is the normalized input to Classify.
type Failure struct {
	Kind  Kind
	Err   error
	Skill *Error
	Text  string
}

// FromError tags an error value.
func FromError(err error) Failure {
	if se, ok := As(err); ok {
		return Failure{Kind: KindSkillError, Err: err, Skill: se, Text: err.Error()}
	}
	if err == nil {
		return Failure{Kind: KindUnknown, Text: "skill returned a nil error"}
	}
	return Failure{Kind: KindPlainError, Err: err, Text: err.Error()}
}

// FromPanic tags a recovered panic value.
func FromPanic(v any) Failure {
	switch x := v.(type) {
	case error:
		return FromError(x)
	case string:
		return Failure{Kind: KindString, Text: x}
	case fmt.Stringer:
		return Failure{Kind: KindUnknown, Text: x.String()}
	default:
		return Failure{Kind: KindUnknown, Text: fmt.Sprintf("%v", v)}
	}
}

// Message returns the failure's human-readable text.
func (f Failure) Message() string {
	if f.Text != "" {
		return f.Text
	}
	return "unknown failure"
}

// SignatureRule maps a recognisable failure to a catalog definition and an
// actionable suggestion. "{skill}" in Suggestion is replaced by the skill name.
type SignatureRule struct {
	Name       string
	Definition Definition
	Suggestion string
	Match      func(err error, msg string) bool
}

// DefaultSignatures returns the built-in rules, evaluated in order.
func DefaultSignatures() []SignatureRule {
	return []SignatureRule{
		{
			Name:       "missing-dependency",
			Definition: DependencyError,
			Suggestion: "Install the missing dependency (run: go mod download, or put the required CLI tool on PATH) and retry",
			Match: func(err error, msg string) bool {
				return errors.Is(err, exec.ErrNotFound) ||
					strings.Contains(msg, "Cannot find module") ||
					strings.Contains(msg, "executable file not found") ||
					strings.Contains(msg, "command not found")
			},
		},
		{
			Name:       "missing-argument",
			Definition: MissingArgument,
			Suggestion: "Run: skillkit run {skill} --help",
			Match: func(_ error, msg string) bool {
				lower := strings.ToLower(msg)
				return strings.Contains(lower, "required argument") ||
					strings.Contains(lower, "missing required")
			},
		},
		{
			Name:       "file-not-found",
			Definition: InvalidFilePath,
			Suggestion: "Check that the file path exists and is accessible",
			Match: func(err error, msg string) bool {
				lower := strings.ToLower(msg)
				return errors.Is(err, fs.ErrNotExist) ||
					strings.Contains(msg, "ENOENT") ||
					strings.Contains(lower, "no such file") ||
					strings.Contains(lower, "file not found")
			},
		},
		{
			Name:       "permission-denied",
			Definition: ExecutionError,
			Suggestion: "Check file permissions or run with appropriate access",
			Match: func(err error, msg string) bool {
				return errors.Is(err, fs.ErrPermission) ||
					strings.Contains(msg, "EACCES") ||
					strings.Contains(strings.ToLower(msg), "permission denied")
			},
		},
		{
			Name:       "malformed-input",
			Definition: ParseError,
			Suggestion: "Check input file format - it may be malformed",
			Match: func(err error, msg string) bool {
				var syn *json.SyntaxError
				lower := strings.ToLower(msg)
				return errors.As(err, &syn) ||
					strings.Contains(msg, "SyntaxError") ||
					strings.Contains(lower, "unexpected token") ||
					strings.Contains(lower, "invalid character")
			},
		},
		{
			Name:       "timeout",
			Definition: Timeout,
			Suggestion: "Retry the skill, or raise its time limit",
			Match: func(err error, msg string) bool {
				lower := strings.ToLower(msg)
				return errors.Is(err, context.DeadlineExceeded) ||
					strings.Contains(lower, "timed out") ||
					strings.Contains(lower, "timeout")
			},
		},
	}
}

// Classified is the canonical error view placed into an envelope.
type Classified struct {
	Definition Definition
	Message    string
	Details    any
	Suggestion string
	Rule       string
}

// Classifier folds any Failure into the catalog.
type Classifier struct {
	rules    []SignatureRule
	fallback Definition
}

// NewClassifier returns a classifier using rules, or DefaultSignatures when
// none are given.
func NewClassifier(rules ...SignatureRule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultSignatures()
	}
	return &Classifier{rules: rules, fallback: ExecutionError}
}

// Rules returns the signature rules in evaluation order.
func (c *Classifier) Rules() []SignatureRule {
	out := make([]SignatureRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify maps a failure to a catalog definition. Skill errors keep their
// definition and message; everything else is matched against the signature
// rules and falls back to EXECUTION_ERROR.
func (c *Classifier) Classify(skill string, f Failure) Classified {
	msg := f.Message()
	rule, matched := c.match(f.Err, msg)

	if f.Kind == KindSkillError && f.Skill != nil {
		out := Classified{
			Definition: f.Skill.Definition(),
			Message:    f.Skill.Error(),
		}
		if ctx := f.Skill.Context(); len(ctx) > 0 {
			out.Details = ctx
		}
		if matched {
			out.Suggestion = expand(rule.Suggestion, skill)
			out.Rule = rule.Name
		}
		return out
	}

	if matched {
		return Classified{
			Definition: rule.Definition,
			Message:    msg,
			Suggestion: expand(rule.Suggestion, skill),
			Rule:       rule.Name,
		}
	}
	return Classified{Definition: c.fallback, Message: msg}
}

func (c *Classifier) match(err error, msg string) (SignatureRule, bool) {
	for _, r := range c.rules {
		if r.Match != nil && r.Match(err, msg) {
			return r, true
		}
	}
	return SignatureRule{}, false
}

func expand(s, skill string) string {
	return strings.ReplaceAll(s, "{skill}", skill)
}

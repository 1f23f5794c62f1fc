// SPDX-License-Identifier: AGPL-3.0-or-later

// Package envelope defines the single result object every skill invocation
// emits, and its JSON and human renderings.
package envelope

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bartekus/skillkit/internal/skillerr"
	"github.com/bartekus/skillkit/internal/tier"
)

// Status is the outcome of one invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPartial Status = "partial"
)

// Envelope is the standard skill output.
type Envelope struct {
	Skill    string     `json:"skill" jsonschema:"required"`
	Status   Status     `json:"status" jsonschema:"required,enum=success,enum=error,enum=partial"`
	Data     any        `json:"data,omitempty"`
	Metadata *Metadata  `json:"metadata,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
}

// TimestampLayout is RFC 3339 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Metadata describes the invocation itself.
type Metadata struct {
	DurationMS    int64     `json:"duration_ms" jsonschema:"minimum=0"`
	Timestamp     string    `json:"timestamp" jsonschema:"format=date-time"`
	ExecutionID   string    `json:"execution_id,omitempty"`
	ExecutionTier tier.Tier `json:"execution_tier,omitempty" jsonschema:"enum=public,enum=confidential,enum=personal"`
	MissionID     string    `json:"mission_id,omitempty"`
}

// ErrorInfo is the classified failure.
type ErrorInfo struct {
	Code       string `json:"code" jsonschema:"pattern=^E[1-5][0-9]{2}$"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	Details    any    `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ErrorFrom converts a classification into the envelope error field.
func ErrorFrom(c skillerr.Classified) *ErrorInfo {
	return &ErrorInfo{
		Code:       c.Definition.Code,
		Message:    c.Message,
		Retryable:  c.Definition.Retryable,
		Details:    c.Details,
		Suggestion: c.Suggestion,
	}
}

// ExitCode is 1 for an error envelope and 0 otherwise.
func (e Envelope) ExitCode() int {
	if e.Status == StatusError {
		return 1
	}
	return 0
}

// Format selects the rendering written to stdout.
type Format string

const (
	FormatJSON  Format = "json"
	FormatHuman Format = "human"
)

// ParseFormat accepts "json" or "human"; empty means json.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatHuman:
		return FormatHuman, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json or human)", s)
	}
}

// Marshal renders env as indented JSON with a trailing newline.
func Marshal(env Envelope) ([]byte, error) {
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding envelope for %s: %w", env.Skill, err)
	}
	return append(raw, '\n'), nil
}

// Write renders env in the given format with a single write to w.
func Write(w io.Writer, env Envelope, format Format, color bool) error {
	var out []byte
	switch format {
	case FormatHuman:
		out = []byte(NewHumanRenderer(color).Render(env))
	default:
		raw, err := Marshal(env)
		if err != nil {
			return err
		}
		out = raw
	}
	_, err := w.Write(out)
	return err
}

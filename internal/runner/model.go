// SPDX-License-Identifier: AGPL-3.0-or-later

package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bartekus/skillkit/internal/envelope"
	"github.com/bartekus/skillkit/internal/manifest"
	"github.com/bartekus/skillkit/internal/marker"
	"github.com/bartekus/skillkit/internal/metrics"
	"github.com/bartekus/skillkit/internal/tier"
)

// Invocation is what a skill function receives.
type Invocation struct {
	Skill    string
	Args     *manifest.Args
	Manifest *manifest.Manifest
	Logger   *zap.Logger
	Guard    *tier.Guard
	Markers  *marker.Scanner
}

// Func is a synchronous skill body. It returns the envelope data or an error.
type Func func(inv *Invocation) (any, error)

// ContextFunc is a skill body that observes cancellation.
type ContextFunc func(ctx context.Context, inv *Invocation) (any, error)

// Outcome is the result of one wrapped invocation.
type Outcome struct {
	Envelope envelope.Envelope
	ExitCode int
	// Help is set when usage was printed instead of running the skill. No
	// envelope is emitted in that case.
	Help bool
}

// Recorder receives one record per completed invocation.
// *metrics.Collector satisfies it.
type Recorder interface {
	Record(skill string, d time.Duration, status string) (metrics.Entry, error)
}

// LastRun summarises the most recent invocation and the skills whose latest
// run failed. Stored as <state_dir>/last-run.json.
type LastRun struct {
	Skill       string          `json:"skill"`
	Status      envelope.Status `json:"status"`
	ExitCode    int             `json:"exit_code"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Failed      []string        `json:"failed"`
}

type partialError struct{ err error }

func (p *partialError) Error() string { return p.err.Error() }
func (p *partialError) Unwrap() error { return p.err }

// Partial marks err as non-fatal. A skill returning non-nil data together
// with a Partial error produces a "partial" envelope that carries both the
// data and the classified error, and exits 0.
func Partial(err error) error {
	if err == nil {
		return nil
	}
	return &partialError{err: err}
}

// IsPartial reports whether err was produced by Partial.
func IsPartial(err error) bool {
	var p *partialError
	return errors.As(err, &p)
}

// SPDX-License-Identifier: AGPL-3.0-or-later

// Package runner wraps skill bodies so that every invocation, successful or
// not, emits exactly one envelope and a deterministic exit code.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bartekus/skillkit/internal/envelope"
	"github.com/bartekus/skillkit/internal/manifest"
	"github.com/bartekus/skillkit/internal/marker"
	"github.com/bartekus/skillkit/internal/skillerr"
	"github.com/bartekus/skillkit/internal/tier"
)

// Options configures a Wrapper. Zero values fall back to sensible defaults
// except Guard, Boundary, Metrics and State, which are simply skipped.
type Options struct {
	Catalog    *skillerr.Catalog
	Classifier *skillerr.Classifier
	Guard      *tier.Guard
	// Boundary, when non-empty, turns any envelope echoing a sovereign token
	// into a SOVEREIGN_LEAK error.
	Boundary *tier.Boundary
	// BoundaryErr reports an incomplete boundary. When set, every run that
	// gets past argument parsing fails with it instead of invoking the skill.
	BoundaryErr error
	Markers     *marker.Scanner
	// WarnOnMarkers logs rendered output that trips the marker scanner.
	WarnOnMarkers bool
	Logger        *zap.Logger
	Metrics       Recorder
	State         *StateStore
	Hooks         Hooks
	Manifests     manifest.Source
	Now           func() time.Time
	Stdout        io.Writer
	Format        envelope.Format
	Color         bool
	MissionID     string
	// Program prefixes the usage line, e.g. "skillkit run".
	Program string
	Timeout time.Duration
}

// Wrapper runs skill functions. It is immutable after New and safe for
// concurrent use as long as its writers are.
type Wrapper struct {
	opts Options
	log  *zap.Logger
}

// New builds a Wrapper from opts.
func New(opts Options) *Wrapper {
	if opts.Catalog == nil {
		opts.Catalog = skillerr.Default()
	}
	if opts.Classifier == nil {
		opts.Classifier = skillerr.NewClassifier()
	}
	if opts.Markers == nil {
		opts.Markers = marker.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Format == "" {
		opts.Format = envelope.FormatJSON
	}
	return &Wrapper{opts: opts, log: opts.Logger}
}

// Run executes fn for the named skill with the given command-line arguments.
func (w *Wrapper) Run(name string, argv []string, fn Func) Outcome {
	return w.RunContext(context.Background(), name, argv, func(_ context.Context, inv *Invocation) (any, error) {
		return fn(inv)
	})
}

// RunContext executes fn, honouring ctx and the configured timeout.
func (w *Wrapper) RunContext(ctx context.Context, name string, argv []string, fn ContextFunc) Outcome {
	start := w.opts.Now()
	log := w.log.With(zap.String("skill", name))

	m, err := w.manifest(name)
	if err != nil {
		return w.finish(ctx, start, nil, w.opts.Format, w.failure(name, nil, skillerr.FromError(err)))
	}

	args, err := m.Parse(argv)
	if err != nil {
		return w.finish(ctx, start, nil, w.opts.Format, w.failure(name, nil, skillerr.FromError(err)))
	}
	if args.Help {
		if err := m.Usage(w.opts.Stdout, w.program(name)); err != nil {
			log.Warn("writing usage", zap.Error(err))
		}
		return Outcome{Help: true, ExitCode: 0}
	}

	format := w.opts.Format
	if args.Format != "" {
		f, err := envelope.ParseFormat(args.Format)
		if err != nil {
			verr := skillerr.New(skillerr.ValidationError, err.Error())
			return w.finish(ctx, start, nil, format, w.failure(name, nil, skillerr.FromError(verr)))
		}
		format = f
	}

	if w.opts.BoundaryErr != nil {
		return w.finish(ctx, start, nil, format, w.failure(name, nil, skillerr.FromError(w.opts.BoundaryErr)))
	}

	inv := &Invocation{
		Skill:    name,
		Args:     args,
		Manifest: m,
		Logger:   log,
		Guard:    w.opts.Guard,
		Markers:  w.opts.Markers,
	}

	if w.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.Timeout)
		defer cancel()
	}

	w.opts.Hooks.before(ctx, log, inv)
	log.Debug("running skill", zap.Any("args", args.Map()))

	data, err := invoke(ctx, fn, inv)
	var env envelope.Envelope
	switch {
	case err == nil:
		env = envelope.Envelope{Skill: name, Status: envelope.StatusSuccess, Data: data}
	case IsPartial(err) && data != nil:
		env = w.failure(name, data, skillerr.FromError(err))
		env.Status = envelope.StatusPartial
	default:
		var f skillerr.Failure
		if p, ok := err.(panicked); ok {
			f = p.failure
		} else {
			f = skillerr.FromError(err)
		}
		env = w.failure(name, nil, f)
	}
	return w.finish(ctx, start, inv, format, env)
}

// panicked carries a recovered panic out of invoke.
type panicked struct{ failure skillerr.Failure }

func (p panicked) Error() string { return p.failure.Message() }

func invoke(ctx context.Context, fn ContextFunc, inv *Invocation) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, panicked{failure: skillerr.FromPanic(r)}
		}
	}()
	return fn(ctx, inv)
}

func (w *Wrapper) manifest(name string) (*manifest.Manifest, error) {
	if w.opts.Manifests == nil {
		return manifest.Fallback(name), nil
	}
	m, err := w.opts.Manifests.Manifest(name)
	if err == nil {
		return m, nil
	}
	if se, ok := skillerr.As(err); ok && se.Code() == skillerr.SkillNotFound.Code {
		return manifest.Fallback(name), nil
	}
	return nil, skillerr.New(skillerr.SchemaMismatch, err.Error(), skillerr.WithCause(err))
}

func (w *Wrapper) program(name string) string {
	if w.opts.Program == "" {
		return name
	}
	return w.opts.Program + " " + name
}

// failure classifies f into an error envelope. Definitions missing from the
// catalog are reported as EXECUTION_ERROR.
func (w *Wrapper) failure(name string, data any, f skillerr.Failure) envelope.Envelope {
	c := w.opts.Classifier.Classify(name, f)
	if _, ok := w.opts.Catalog.ByCode(c.Definition.Code); !ok {
		c.Definition = skillerr.ExecutionError
	}
	return envelope.Envelope{
		Skill:  name,
		Status: envelope.StatusError,
		Data:   data,
		Error:  envelope.ErrorFrom(c),
	}
}

// finish stamps metadata, applies the sovereign boundary, renders, writes
// once and then runs the bookkeeping that must never affect the outcome.
func (w *Wrapper) finish(ctx context.Context, start time.Time, inv *Invocation, format envelope.Format, env envelope.Envelope) Outcome {
	log := w.log.With(zap.String("skill", env.Skill))
	end := w.opts.Now()
	env.Metadata = w.metadata(start, end)

	env = w.enforceBoundary(env)

	out, err := render(env, format, w.opts.Color)
	if err != nil {
		perr := skillerr.New(skillerr.ParseError, err.Error(), skillerr.WithCause(err))
		meta := env.Metadata
		env = w.failure(env.Skill, nil, skillerr.FromError(perr))
		env.Metadata = meta
		out, err = render(env, format, w.opts.Color)
		if err != nil {
			log.Error("rendering envelope", zap.Error(err))
		}
	}

	if w.opts.WarnOnMarkers {
		if res := w.opts.Markers.Scan(string(out)); res.HasMarkers {
			log.Warn("output contains sensitive markers", zap.Strings("markers", res.Markers))
		}
	}

	if _, err := w.opts.Stdout.Write(out); err != nil {
		log.Error("writing envelope", zap.Error(err))
	}

	if env.Error != nil && env.Status == envelope.StatusError {
		log.Error("skill failed",
			zap.String("code", env.Error.Code),
			zap.String("message", env.Error.Message),
			zap.Bool("retryable", env.Error.Retryable))
	}

	duration := end.Sub(start)
	if w.opts.Metrics != nil {
		if _, err := w.opts.Metrics.Record(env.Skill, duration, string(env.Status)); err != nil {
			log.Warn("recording metrics", zap.Error(err))
		}
	}
	if w.opts.State != nil {
		if err := w.opts.State.Record(env); err != nil {
			log.Warn("recording run state", zap.Error(err))
		}
	}
	if inv != nil {
		w.opts.Hooks.after(ctx, log, inv, env)
	}

	return Outcome{Envelope: env, ExitCode: env.ExitCode()}
}

func (w *Wrapper) metadata(start, end time.Time) *envelope.Metadata {
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	meta := &envelope.Metadata{
		DurationMS:  ms,
		Timestamp:   end.UTC().Format(envelope.TimestampLayout),
		ExecutionID: uuid.NewString(),
		MissionID:   w.opts.MissionID,
	}
	if w.opts.Guard != nil {
		if wd, err := os.Getwd(); err == nil {
			meta.ExecutionTier = w.opts.Guard.DetectTier(wd)
		}
	}
	return meta
}

func (w *Wrapper) enforceBoundary(env envelope.Envelope) envelope.Envelope {
	b := w.opts.Boundary
	if b == nil || b.Len() == 0 {
		return env
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		Data  any                 `json:"data,omitempty"`
		Error *envelope.ErrorInfo `json:"error,omitempty"`
	}{env.Data, env.Error}); err != nil {
		// Unencodable data is reported by render.
		return env
	}
	res := b.Check(buf.String())
	if res.Safe {
		return env
	}
	leak := skillerr.New(skillerr.SovereignLeak,
		fmt.Sprintf("%d sovereign token(s) in output", len(res.Detected)),
		skillerr.WithContext(map[string]any{"detected": res.Detected}))
	meta := env.Metadata
	out := w.failure(env.Skill, nil, skillerr.FromError(leak))
	out.Metadata = meta
	return out
}

func render(env envelope.Envelope, format envelope.Format, color bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := envelope.Write(&buf, env, format, color); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

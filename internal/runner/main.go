// SPDX-License-Identifier: AGPL-3.0-or-later

package runner

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/bartekus/skillkit/internal/config"
	"github.com/bartekus/skillkit/internal/logging"
	"github.com/bartekus/skillkit/internal/manifest"
	"github.com/bartekus/skillkit/internal/marker"
	"github.com/bartekus/skillkit/internal/metrics"
	"github.com/bartekus/skillkit/internal/skillerr"
	"github.com/bartekus/skillkit/internal/tier"
)

// Setup carries the process-level pieces FromConfig cannot derive from config.
type Setup struct {
	// Builtin, when non-nil, is consulted after the configured skills directory.
	Builtin manifest.Source
	Stdout  io.Writer
	Program string
	// Logger is reused when set; otherwise one is built from cfg.Log.
	Logger *zap.Logger
}

// FromConfig builds the process wrapper from cfg. The returned cleanup
// flushes the logger.
func FromConfig(cfg *config.Config, setup Setup) (*Wrapper, func(), error) {
	log := setup.Logger
	if log == nil {
		var err error
		log, err = logging.New(logging.Options{
			Level: cfg.Log.Level,
			Path:  cfg.Log.Path,
			Debug: cfg.Log.Debug,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("building logger: %w", err)
		}
	}
	cleanup := func() { _ = log.Sync() }

	guard, err := tier.NewGuard(cfg.KnowledgeRoot)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	opts := Options{
		Guard:         guard,
		Markers:       marker.New(),
		WarnOnMarkers: cfg.Guard.Markers,
		Logger:        log,
		Stdout:        setup.Stdout,
		Format:        cfg.Format,
		Color:         cfg.Color,
		MissionID:     cfg.MissionID,
		Manifests:     sources(cfg.Skills.Dir, setup.Builtin),
		Program:       setup.Program,
	}

	if cfg.Guard.Sovereign {
		tokens, err := guard.HarvestTokens()
		if err != nil {
			log.Error("harvesting sovereign tokens", zap.Error(err))
			opts.BoundaryErr = skillerr.New(skillerr.SovereignLeak,
				"output cannot be checked, token harvest incomplete: "+err.Error(),
				skillerr.WithCause(err),
				skillerr.WithContext(map[string]any{"knowledge_root": guard.Root()}))
		}
		opts.Boundary = tier.NewBoundary(tokens)
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.NewCollector(metrics.Options{
			Dir:     cfg.Metrics.Dir,
			Persist: true,
			Logger:  log,
		})
	}
	if cfg.State.Enabled {
		opts.State = NewStateStore(cfg.State.Dir)
	}

	return New(opts), cleanup, nil
}

func sources(dir string, builtin manifest.Source) manifest.Source {
	var chain manifest.Chain
	if dir != "" {
		chain = append(chain, manifest.FSSource{FS: os.DirFS(dir)})
	}
	if builtin != nil {
		chain = append(chain, builtin)
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

// Exec loads configuration from the environment and the default config
// search path, runs fn once and returns the exit code.
func Exec(ctx context.Context, name string, argv []string, fn ContextFunc) int {
	v := config.New()
	if _, err := config.ReadFile(v, os.Getenv(config.EnvPrefix+"_CONFIG")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	w, cleanup, err := FromConfig(cfg, Setup{Stdout: os.Stdout})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cleanup()
	return w.RunContext(ctx, name, argv, fn).ExitCode
}

// Main is the entry point for a standalone skill binary: it runs fn with
// os.Args[1:] and exits with the envelope's code.
func Main(name string, fn Func) {
	MainContext(name, func(_ context.Context, inv *Invocation) (any, error) {
		return fn(inv)
	})
}

// MainContext is Main for context-aware skill bodies.
func MainContext(name string, fn ContextFunc) {
	os.Exit(Exec(context.Background(), name, os.Args[1:], fn))
}

// SPDX-License-Identifier: AGPL-3.0-or-later

package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bartekus/skillkit/internal/envelope"
)

// BeforeHook runs after arguments are parsed and before the skill body.
type BeforeHook func(ctx context.Context, inv *Invocation)

// AfterHook runs once the envelope has been written.
type AfterHook func(ctx context.Context, inv *Invocation, env envelope.Envelope)

// Hooks are observers; they cannot change the outcome. A panicking hook is
// logged and otherwise ignored.
type Hooks struct {
	Before []BeforeHook
	After  []AfterHook
}

func (h Hooks) before(ctx context.Context, log *zap.Logger, inv *Invocation) {
	for i, fn := range h.Before {
		guard(log, "before", i, func() { fn(ctx, inv) })
	}
}

func (h Hooks) after(ctx context.Context, log *zap.Logger, inv *Invocation, env envelope.Envelope) {
	for i, fn := range h.After {
		guard(log, "after", i, func() { fn(ctx, inv, env) })
	}
}

func guard(log *zap.Logger, phase string, idx int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("hook panicked",
				zap.String("phase", phase),
				zap.Int("index", idx),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

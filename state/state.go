package state

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"
)

// Env can be read from any Goroutine
type Env struct {
	LocalCfg
	Context context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger
	Clock   clock.Clock
}

// NewEnv derives a cancellable environment from parent.
func NewEnv(parent context.Context, cfg LocalCfg, log *slog.Logger) *Env {
	ctx, cancel := context.WithCancelCause(parent)
	return &Env{
		LocalCfg: cfg,
		Context:  ctx,
		Cancel:   cancel,
		Log:      log,
		Clock:    clock.New(),
	}
}

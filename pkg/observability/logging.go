package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/latentscope/pkg/domain"
)

// LogHooks logs state changes at info level and frame traffic at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.StateEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "state_change", "from", e.From, "to", e.To, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "state_change", "from", e.From, "to", e.To)
		},
		OnDecode: func(ctx context.Context, e *domain.DecodeEvent) {
			logger.DebugContext(ctx, "decode", "latent", e.Latent, "source", e.Source, "duration", e.Duration)
		},
		OnDispose: func(ctx context.Context, e *domain.BufferEvent) {
			logger.DebugContext(ctx, "dispose", "seq", e.Seq)
		},
		OnDiscard: func(ctx context.Context, e *domain.BufferEvent) {
			logger.DebugContext(ctx, "discard", "seq", e.Seq, "latent", e.Latent)
		},
	}
}

package bootstrap

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/securenote/internal/config"
	"github.com/smallbiznis/securenote/internal/service"
)

// StartTokenJanitor periodically deletes expired refresh-token rows.
// Redemption never deletes rows, so without the sweep the table only grows.
func StartTokenJanitor(lc fx.Lifecycle, cfg config.Config, auth *service.AuthService, logger *zap.Logger) {
	if cfg.TokenSweepInterval <= 0 {
		return
	}

	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.TokenSweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-runCtx.Done():
						return
					case <-ticker.C:
						if err := auth.SweepExpiredTokens(runCtx); err != nil && logger != nil {
							logger.Warn("token sweep failed", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

// Package bootstrap contains startup tasks run through fx lifecycle hooks.
package bootstrap

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/securenote/internal/config"
	"github.com/smallbiznis/securenote/internal/service"
)

// EnsureAdmin creates the configured admin account if missing. It is a
// no-op unless both ADMIN_EMAIL and ADMIN_PASSWORD are set.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, auth *service.AuthService, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, auth, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, auth *service.AuthService, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPassword == "" {
		return nil
	}

	username := "admin"
	if at := strings.IndexByte(email, '@'); at > 0 {
		username = email[:at]
	}

	user, err := auth.Register(ctx, username, email, cfg.AdminPassword, true, true)
	if err != nil {
		if svcErr := service.AsError(err); svcErr.Code == "validation_error" {
			// Already registered on a previous start.
			return nil
		}
		return err
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", user.Email),
			zap.Int64("user_id", user.ID),
		)
	}
	return nil
}

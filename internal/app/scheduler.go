package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"go-freelance/internal/model"
)

type tokenSweeper interface {
	CleanupExpiredTokens(ctx context.Context) (model.CleanupResult, error)
}

// scheduleCleanup registers the expired-token sweep. The sweep logs and
// counts its own results; failures only get logged here.
func scheduleCleanup(ctx context.Context, c *cron.Cron, spec string, sweeper tokenSweeper) error {
	_, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		if _, err := sweeper.CleanupExpiredTokens(runCtx); err != nil {
			slog.Error("scheduled token cleanup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid TOKEN_CLEANUP_SCHEDULE %q: %w", spec, err)
	}

	slog.Info("token cleanup scheduled", "schedule", spec)
	return nil
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"paylink/internal/service"
)

// ExpirySweeper periodically triggers the service's expiry sweep. The sweep
// itself is idempotent, so overlapping or repeated runs are harmless.
type ExpirySweeper struct {
	svc      service.PaymentLinkService
	interval time.Duration
	logger   *slog.Logger
}

func NewExpirySweeper(svc service.PaymentLinkService, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		svc:      svc,
		interval: interval,
		logger:   logger,
	}
}

func (w *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiry sweeper started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.svc.SweepExpired(ctx, time.Now()); err != nil {
				w.logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

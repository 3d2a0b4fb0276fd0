package sudoapi

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// billingJob sweeps due subscriptions once per interval. The sweep itself is
// idempotent: a charged subscription's next payment date moves into the
// future, so a crashed or overlapping run can't double charge.
func (s *BaseAPI) billingJob(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return nil
		case <-t.C:
			report, err := s.RunDueCharges(ctx, time.Now())
			if err != nil {
				slog.WarnContext(ctx, "Billing sweep failed", slog.Any("err", err))
				continue
			}
			if report.Attempted > 0 {
				slog.InfoContext(ctx, "Billing sweep done",
					slog.Int("attempted", report.Attempted),
					slog.Int("charged", report.Charged),
					slog.Int("failed", report.Failed),
					slog.Int("paused", report.Paused),
				)
			}
		}
	}
}

func (s *BaseAPI) expiryJob(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return nil
		case <-t.C:
			cnt, err := s.ExpireStaleReferences(ctx)
			if err != nil {
				slog.WarnContext(ctx, "Couldn't expire stale transfer references", slog.Any("err", err))
				continue
			}
			if cnt > 0 {
				slog.InfoContext(ctx, "Expired stale transfer references", slog.Int("count", cnt))
			}
		}
	}
}

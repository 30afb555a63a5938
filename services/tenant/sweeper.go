package tenant

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sweeper deactivates expired overrides once a day. Reads already ignore
// expired overrides, so this only keeps is_active truthful for listings.
type Sweeper struct {
	service *Service
	cancel  context.CancelFunc
}

func NewSweeper(svc *Service) *Sweeper {
	return &Sweeper{service: svc}
}

func StartSweeper(lc fx.Lifecycle, s *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if s.cancel != nil {
				s.cancel()
			}
			return nil
		},
	})
}

func (s *Sweeper) run(ctx context.Context) {
	zap.L().Info("[Sweeper] started override expiry sweeper")

	for {
		now := time.Now()
		next := nextRunTime(now, 1, 0)

		zap.L().Info("[Sweeper] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", next.Sub(now)),
		)
		select {
		case <-time.After(next.Sub(now)):
			s.runOnce(ctx)
		case <-ctx.Done():
			zap.L().Info("[Sweeper] stopped")
			return
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	start := time.Now()

	n, err := s.service.DeactivateExpired(ctx)
	if err != nil {
		zap.L().Error("[Sweeper] failed to deactivate expired overrides", zap.Error(err))
		return
	}

	zap.L().Info("[Sweeper] deactivated expired overrides",
		zap.Int64("count", n),
		zap.Duration("duration", time.Since(start)),
	)
}

// nextRunTime returns the next occurrence of hour:minute after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

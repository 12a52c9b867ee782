package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/store"
)

// HousekeepingService sweeps expired login challenges and used TOTP steps on
// a timer. Neither is needed once expired: a stale challenge is refused on
// read and a used step is outside the skew window.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

type sweep struct {
	name string
	run  func(ctx context.Context, now time.Time) (int64, error)
}

// NewHousekeepingService sweeps every interval, hourly when interval is not
// positive.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
	}
}

func (s *HousekeepingService) sweeps() []sweep {
	return []sweep{
		{"login_challenges", s.Store.LoginChallenges().DeleteExpiredChallenges},
		{"used_codes", s.Store.UsedCodes().DeleteExpiredUsedCodes},
	}
}

// Start sweeps once, then every Interval until ctx ends or Stop is called.
func (s *HousekeepingService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			s.Cleanup(ctx)
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop waits for a sweep in progress to finish. It is safe to call more
// than once, or without Start.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
		s.Logger.Info("housekeeping stopped")
	})
}

// Cleanup runs every sweep once and returns the rows removed. A failing
// sweep is logged and does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	now := s.Now()
	var total int64
	for _, sw := range s.sweeps() {
		n, err := sw.run(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping sweep failed", "table", sw.name, "error", err)
			continue
		}
		if n > 0 {
			s.Logger.Debug("housekeeping swept", "table", sw.name, "rows", n)
		}
		total += n
	}
	return total
}

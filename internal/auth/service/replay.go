package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/otpx"
	"github.com/aussiebroadwan/lockbox/pkg/replay"
)

// ReplayGuard remembers consumed TOTP steps until they can no longer verify.
// MarkUsed returns replay.ErrReplayed when the step was already consumed.
// *replay.Guard (redis) satisfies it, StoreReplayGuard is the sqlite one.
type ReplayGuard interface {
	MarkUsed(ctx context.Context, userID string, step int64, expiresAt time.Time) error
}

// StoreReplayGuard records consumed steps in the used_totp_steps table.
type StoreReplayGuard struct {
	Store store.Store
}

func (g StoreReplayGuard) MarkUsed(ctx context.Context, userID string, step int64, expiresAt time.Time) error {
	err := g.Store.UsedCodes().MarkUsed(ctx, userID, step, expiresAt)
	if errors.Is(err, store.ErrAlreadyExists) {
		return replay.ErrReplayed
	}
	return err
}

// stepExpiry is the moment a step can no longer verify under m's drift
// window, after which remembering it is pointless.
func stepExpiry(m *otpx.Manager, step int64) time.Time {
	period := int64(m.Period)
	if period <= 0 {
		period = otpx.DefaultPeriod
	}
	return time.Unix((step+int64(m.Skew)+1)*period, 0).UTC()
}

// consumeTOTP verifies code against secret at now and burns the matched step.
// It returns false for a wrong code and for a step already consumed; err is
// reserved for guard failures.
func consumeTOTP(ctx context.Context, m *otpx.Manager, g ReplayGuard, userID, secret, code string, now time.Time) (bool, error) {
	step, ok := m.VerifyAt(code, secret, now)
	if !ok {
		return false, nil
	}

	err := g.MarkUsed(ctx, userID, step, stepExpiry(m, step))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, replay.ErrReplayed):
		return false, nil
	default:
		return false, fmt.Errorf("mark totp step used: %w", err)
	}
}

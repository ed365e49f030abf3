// Package oauth provides token refresh scheduling for the in-memory Spotify
// credential. It performs jittered checks and refreshes when expiry falls
// within a configured window.
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mili288/Spotify-Twitch-Song-Request/telemetry"
)

// Refreshable is a credential holder that can renew itself.
type Refreshable interface {
	// Expiry returns the access token expiry; ok is false when no token is held.
	Expiry() (exp time.Time, ok bool)
	Refresh(ctx context.Context) error
}

// ErrNoCredential is reported by Check when there is nothing to refresh yet.
var ErrNoCredential = errors.New("no credential held")

// StartRefresher launches a goroutine that periodically checks src and refreshes it.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
func StartRefresher(ctx context.Context, src Refreshable, interval, window time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	// Randomize initial delay so restarts don't line up with provider expiry boundaries.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval/2) + 1))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			if ctx.Err() != nil {
				return
			}
			if _, err := Check(ctx, src, window); err != nil && !errors.Is(err, ErrNoCredential) && ctx.Err() == nil {
				slog.Warn("token refresh failed", slog.String("provider", "spotify"), slog.Any("err", err))
			}
			// Add per-iteration jitter (±20% of interval) for scheduling diversity.
			jitterRange := int64(interval/5) + 1
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
		}
	}()
}

// Check refreshes src once if its token expires within window.
// It reports whether a refresh was attempted.
func Check(ctx context.Context, src Refreshable, window time.Duration) (bool, error) {
	exp, ok := src.Expiry()
	if !ok {
		return false, ErrNoCredential
	}
	// zero expiry: the provider never said, nothing to schedule against
	if exp.IsZero() || time.Until(exp) > window {
		return false, nil
	}
	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := src.Refresh(ctx2); err != nil {
		telemetry.IncTokenRefresh(telemetry.OutcomeError)
		return true, err
	}
	telemetry.IncTokenRefresh(telemetry.OutcomeSuccess)
	slog.Info("token refreshed", slog.String("provider", "spotify"), slog.Time("expires_at", exp))
	return true, nil
}

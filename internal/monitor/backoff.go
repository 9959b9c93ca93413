package monitor

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danmuck/wlctl/internal/config"
)

// jitterBackOff adapts the exponential jittered delay policy to the
// backoff.BackOff interface.
type jitterBackOff struct {
	cfg     config.Backoff
	rng     *rand.Rand
	attempt int
}

var _ backoff.BackOff = (*jitterBackOff)(nil)

func newJitterBackOff(cfg config.Backoff, rng *rand.Rand) *jitterBackOff {
	return &jitterBackOff{cfg: cfg, rng: rng}
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	b.attempt++
	return nextDelay(b.cfg, b.attempt, b.rng)
}

func (b *jitterBackOff) Reset() {
	b.attempt = 0
}

// nextDelay returns the wait before retry attempt N (1-based). Jitter
// scales the delay into [0.5, 1.5).
func nextDelay(cfg config.Backoff, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(max(attempt, 1)-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// retryPolicy bounds attempts when MaxAttempts is set.
func retryPolicy(cfg config.Backoff, rng *rand.Rand) backoff.BackOff {
	var b backoff.BackOff = newJitterBackOff(cfg, rng)
	if cfg.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1))
	}
	return b
}

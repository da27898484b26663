package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/logger"
	"github.com/okian/botscope/pkg/metrics"
)

// Default retry configuration constants.
const (
	defaultMaxAttempts    = 3
	defaultCallTimeout    = 60 * time.Second
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second
	defaultMultiplier     = 2.0
	jitterFraction        = 0.2
)

// RetryPolicy bounds every oracle call and retries failed ones with exponential backoff.
type RetryPolicy struct {
	MaxAttempts    int
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         bool
}

// DefaultRetryPolicy returns three attempts with a 60s per-call timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    defaultMaxAttempts,
		Timeout:        defaultCallTimeout,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		Multiplier:     defaultMultiplier,
		Jitter:         true,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Backoff returns the delay before retry number attempt (1-based), without jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	d := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	return time.Duration(d)
}

// Option applies a configuration option to Retrying.
type Option func(*Retrying)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Retrying) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSleep replaces the backoff sleeper. Tests use it to avoid real waits.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrying) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// Retrying decorates a TextOracle with per-call timeouts and retries.
type Retrying struct {
	next   TextOracle
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	logger logger.Logger
}

// WithRetry wraps next with policy.
func WithRetry(next TextOracle, policy RetryPolicy, opts ...Option) *Retrying {
	r := &Retrying{
		next:   next,
		policy: policy.normalized(),
		sleep:  sleepContext,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Complete calls the wrapped oracle until it succeeds, the attempts run out, or ctx ends.
// Exhausted retries return an error wrapping model.ErrUpstreamUnavailable.
func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordOracleRetry()
			if err := r.sleep(ctx, r.delay(attempt-1)); err != nil {
				break
			}
		}

		text, err := r.call(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, model.ErrConfiguration) {
			break
		}
		r.logger.Warn(ctx, "oracle call failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", r.policy.MaxAttempts),
			logger.Error(err),
		)
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", fmt.Errorf("oracle complete: %w: %w", model.ErrUpstreamUnavailable, lastErr)
}

func (r *Retrying) call(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()

	start := time.Now()
	text, err := r.next.Complete(callCtx, prompt)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordOracleCall(latency, "error")
		return "", err
	}
	metrics.RecordOracleCall(latency, "ok")
	return text, nil
}

func (r *Retrying) delay(retry int) time.Duration {
	d := r.policy.Backoff(retry)
	if r.policy.Jitter && d > 0 {
		spread := float64(d) * jitterFraction
		d += time.Duration((rand.Float64()*2 - 1) * spread) //nolint:gosec // jitter only
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

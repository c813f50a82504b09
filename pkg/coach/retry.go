package coach

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls the exponential backoff applied to rate-limited AI calls
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig: 3 retries (4 attempts), 1s, 2s, 4s, no jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
	}
}

// RetryNotifyFunc is called before each scheduled retry
type RetryNotifyFunc func(op string, attempt int, delay time.Duration, err error)

// Retrier wraps outbound calls with bounded retry on rate-limit errors only
type Retrier struct {
	config RetryConfig
	logger *CoachLogger

	mu     sync.RWMutex
	notify []RetryNotifyFunc
}

func NewRetrier(config RetryConfig, logger *CoachLogger) *Retrier {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Retrier{
		config: config,
		logger: logger.WithComponent("retry"),
	}
}

// Config returns the active policy
func (r *Retrier) Config() RetryConfig {
	return r.config
}

// OnRetry registers a retry observer
func (r *Retrier) OnRetry(fn RetryNotifyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = append(r.notify, fn)
}

func (r *Retrier) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialDelay
	b.Multiplier = r.config.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = r.config.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do runs fn, retrying with exponential backoff while it fails with a
// rate-limit error. Other errors are returned immediately. Once the
// attempt limit is spent the last error comes back as RATE_LIMITED.
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := 0
	operation := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRateLimitError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(r.newBackOff(), uint64(r.config.MaxRetries)),
		ctx,
	)

	err := backoff.RetryNotify(operation, policy, func(err error, delay time.Duration) {
		r.logger.LogRetry(op, attempts, delay, err)
		r.mu.RLock()
		observers := r.notify
		r.mu.RUnlock()
		for _, fn := range observers {
			fn(op, attempts, delay, err)
		}
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsRateLimitError(err) {
		return Wrapf(err, ErrCodeRateLimited, "%s: rate limited after %d attempts", op, attempts).
			AddDetail("attempts", attempts).
			AddDetail("op", op)
	}
	return err
}

// Retry is the value-returning form of Retrier.Do
func Retry[T any](ctx context.Context, r *Retrier, op string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

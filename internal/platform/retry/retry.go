// Package retry runs provider calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/yungbote/neurobridge-tutor/internal/platform/httpx"
)

// Policy bounds a retried call. Attempts counts the first call, so the
// default of 3 means two retries waiting ~1s and ~2s.
type Policy struct {
	Attempts   uint          `yaml:"attempts"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
	MaxElapsed time.Duration `yaml:"max_elapsed"`
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Initial:    time.Second,
		Max:        4 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
		MaxElapsed: 30 * time.Second,
	}
}

type options struct {
	retryable func(error) bool
	onRetry   func(attempt int, err error, wait time.Duration)
}

type Option func(*options)

// Retryable overrides the transient-error classifier (httpx.IsRetryableError
// by default).
func Retryable(fn func(error) bool) Option {
	return func(o *options) { o.retryable = fn }
}

// OnRetry is called before each wait.
func OnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// policy is exhausted. It reports how many attempts were made.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error), opts ...Option) (T, int, error) {
	o := options{retryable: httpx.IsRetryableError}
	for _, opt := range opts {
		opt(&o)
	}
	p = p.normalized()

	eb := &backoff.ExponentialBackOff{
		InitialInterval:     p.Initial,
		RandomizationFactor: p.Jitter,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.Max,
	}
	eb.Reset()

	attempts := 0
	op := func() (T, error) {
		attempts++
		v, err := fn(ctx)
		if err != nil && !o.retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(p.Attempts),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
	}
	if o.onRetry != nil {
		retryOpts = append(retryOpts, backoff.WithNotify(func(err error, wait time.Duration) {
			o.onRetry(attempts, err, wait)
		}))
	}
	v, err := backoff.Retry(ctx, op, retryOpts...)
	return v, attempts, err
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts == 0 {
		p.Attempts = d.Attempts
	}
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max < p.Initial {
		p.Max = p.Initial * 4
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = d.Jitter
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = d.MaxElapsed
	}
	return p
}

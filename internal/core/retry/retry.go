// Package retry wraps cenkalti/backoff with an error classifier so callers
// decide which failures are transient.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes when and how an operation is retried.
//
// BackOff:    builds a fresh schedule for every Do call. Nil means backoff.NewExponentialBackOff.
// Retryable:  classifies an error; nil retries nothing.
// MaxRetries: caps the number of retries; 0 is unbounded.
// Notify:     called before every wait.
type Policy struct {
	BackOff    func() backoff.BackOff
	Retryable  func(error) bool
	MaxRetries uint64
	Notify     func(err error, wait time.Duration)
}

// Fixed waits the same interval between every attempt.
func Fixed(interval time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff { return backoff.NewConstantBackOff(interval) }
}

// Do runs op until it succeeds, returns a non-retryable error, the retry
// budget is exhausted or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var b backoff.BackOff
	if p.BackOff != nil {
		b = p.BackOff()
	} else {
		b = backoff.NewExponentialBackOff()
	}
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	b = backoff.WithContext(b, ctx)

	attempt := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.Notify != nil {
		notify = backoff.Notify(p.Notify)
	}
	return backoff.RetryNotify(attempt, b, notify)
}

// Package retry runs external calls under a bounded timeout and a fixed
// retry budget with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default policy values.
const (
	defaultAttempts = 3
	defaultInitial  = 200 * time.Millisecond
	defaultMax      = 2 * time.Second
	defaultTimeout  = 10 * time.Second
)

// ErrPermanent marks an error that must not be retried. Wrap with Permanent.
var ErrPermanent = errors.New("permanent error")

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Policy is injected into every I/O boundary call.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout bounds each attempt; zero disables the per-attempt deadline.
	Timeout time.Duration
}

// Default returns the stock policy.
func Default() Policy {
	return Policy{
		MaxAttempts:    defaultAttempts,
		InitialBackoff: defaultInitial,
		MaxBackoff:     defaultMax,
		Timeout:        defaultTimeout,
	}
}

// Backoff returns the wait before attempt n+1 (n starting at 1).
func (p Policy) Backoff(n int) time.Duration {
	b := p.exponential()
	var d time.Duration
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// exponential builds the unjittered schedule: InitialBackoff doubling up to
// MaxBackoff, with no overall deadline.
func (p Policy) exponential() *backoff.ExponentialBackOff {
	maxInterval := p.MaxBackoff
	if maxInterval <= 0 {
		maxInterval = time.Duration(math.MaxInt64)
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Do calls fn until it succeeds, returns a permanent error, the attempts
// are exhausted or ctx is done. The last error is returned wrapped with the
// attempt count.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		n    int
		last error
	)
	op := func() error {
		n++
		last = p.attempt(ctx, fn)
		if last != nil && errors.Is(last, ErrPermanent) {
			return backoff.Permanent(last)
		}
		return last
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(attempts-1)), ctx)

	err := backoff.Retry(op, b)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermanent):
		return err
	case ctx.Err() != nil:
		if last != nil && !errors.Is(last, ctx.Err()) {
			err = errors.Join(last, ctx.Err())
		}
		return fmt.Errorf("attempt %d: %w", n, err)
	}
	return fmt.Errorf("after %d attempts: %w", n, err)
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(actx)
}

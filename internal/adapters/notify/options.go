package notify

import (
	"time"

	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
	"github.com/widjis/attend-now-report-view-sub001/pkg/retry"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTitle sets the first line of every summary.
func WithTitle(title string) Option {
	return func(d *Dispatcher) {
		if title != "" {
			d.title = title
		}
	}
}

// WithAttachment attaches an XLSX run report to each message.
func WithAttachment(on bool) Option {
	return func(d *Dispatcher) {
		d.attach = on
	}
}

// WithRetryPolicy sets the policy around each send.
func WithRetryPolicy(p retry.Policy) Option {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithTimeout bounds one Notify call, retries included.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

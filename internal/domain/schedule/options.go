package schedule

import (
	"time"

	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
)

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithCalendar sets the holiday/weekend calendar.
func WithCalendar(c *Calendar) Option {
	return func(r *Resolver) {
		if c != nil {
			r.calendar = c
		}
	}
}

// WithTemplates overrides shift windows per type; types not present keep
// their default.
func WithTemplates(t Templates) Option {
	return func(r *Resolver) {
		for k, v := range t {
			r.templates[k] = v
		}
	}
}

// WithLocation sets the zone dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

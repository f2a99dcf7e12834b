// Package repository implements the transaction sources, canonical stores,
// run history and schedule persistence used by the sync engine.
package repository

import (
	"time"

	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
)

// Option applies a configuration option to a store.
type Option func(*storeConfig)

type storeConfig struct {
	name   string
	loc    *time.Location
	now    func() time.Time
	logger logger.Logger
}

func newStoreConfig(opts []Option) storeConfig {
	c := storeConfig{name: "memory", loc: time.Local, now: time.Now, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithName sets the source name used in logs and health reports.
func WithName(name string) Option {
	return func(c *storeConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLocation sets the zone that defines work dates.
func WithLocation(loc *time.Location) Option {
	return func(c *storeConfig) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock replaces time.Now for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(c *storeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

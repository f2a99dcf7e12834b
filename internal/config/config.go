// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config holding every default.
//   - Load layers .env, an optional YAML file and ATTENDSYNC_ env vars on top.
//   - Nested keys are separated by "__" in env vars, e.g. ATTENDSYNC_SYNC__BATCH_SIZE.
package config

import (
	"runtime"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/reconcile"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/schedule"
	"github.com/widjis/attend-now-report-view-sub001/pkg/retry"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// Timezone defines work dates and scheduled times, e.g. "Asia/Makassar".
	Timezone string `koanf:"timezone" validate:"required,timezone"`

	// AutoMigrate creates missing tables on start.
	AutoMigrate bool `koanf:"auto_migrate"`

	// Source is the primary access-control database. It also holds employees
	// and their shift assignments.
	Source Database `koanf:"source"`
	// ExtraSources are merged with Source per (staff, date).
	ExtraSources []Database `koanf:"extra_sources" validate:"dive"`
	// Target receives canonical records and run history.
	Target Database `koanf:"target"`
	// Mirror optionally receives a copy of every record; empty driver disables it.
	Mirror Database `koanf:"mirror"`

	Sync      Sync      `koanf:"sync"`
	Retry     Retry     `koanf:"retry"`
	Workers   Workers   `koanf:"workers"`
	Scheduler Scheduler `koanf:"scheduler"`
	Notify    Notify    `koanf:"notify"`

	// Shifts overrides the stock shift windows per schedule type.
	Shifts map[string]Shift `koanf:"shifts" validate:"dive"`
	// Holidays lists dates (YYYY-MM-DD) classified as holidays.
	Holidays []string `koanf:"holidays" validate:"dive,datetime=2006-01-02"`
}

// Database names a store and how to reach it.
type Database struct {
	Name   string `koanf:"name"`
	Driver string `koanf:"driver" validate:"omitempty,oneof=memory sqlite postgres"`
	DSN    string `koanf:"dsn"`
}

// Enabled reports whether a driver is configured.
func (d Database) Enabled() bool { return d.Driver != "" }

// Sync holds the run defaults.
type Sync struct {
	BatchSize            int    `koanf:"batch_size" validate:"gt=0"`
	ToleranceSeconds     int    `koanf:"tolerance_seconds" validate:"gte=0"`
	Mode                 string `koanf:"mode" validate:"oneof=filo nearest"`
	DedupeEpsilonSeconds int    `koanf:"dedupe_epsilon_seconds" validate:"gte=0"`
	MaxWindowDays        int    `koanf:"max_window_days" validate:"gt=0"`
	SampleSize           int    `koanf:"sample_size" validate:"gt=0"`
	OutsideRangeFallback bool   `koanf:"outside_range_fallback"`
	// Mirror writes every run to the mirror store unless a run opts out.
	// When false, runs mirror only when they ask to.
	Mirror bool `koanf:"mirror"`
	// OvernightSlackMinutes extends an overnight shift past its scheduled end
	// when assigning next-day punches to it.
	OvernightSlackMinutes int `koanf:"overnight_slack_minutes" validate:"gte=0"`
}

// Retry is the policy around every store and notification call.
type Retry struct {
	MaxAttempts      int `koanf:"max_attempts" validate:"gte=1"`
	InitialBackoffMS int `koanf:"initial_backoff_ms" validate:"gte=0"`
	MaxBackoffMS     int `koanf:"max_backoff_ms" validate:"gte=0"`
	TimeoutMS        int `koanf:"timeout_ms" validate:"gte=0"`
}

// Workers sizes the group worker pool.
type Workers struct {
	Count     int `koanf:"count"`
	QueueSize int `koanf:"queue_size"`
}

// Scheduler seeds the sync schedule when none is stored yet.
type Scheduler struct {
	Enabled bool            `koanf:"enabled"`
	Notify  bool            `koanf:"notify"`
	Entries []ScheduleEntry `koanf:"entries" validate:"dive"`
}

// ScheduleEntry is one daily trigger.
type ScheduleEntry struct {
	Time        string `koanf:"time" validate:"required,datetime=15:04"`
	Timezone    string `koanf:"timezone" validate:"omitempty,timezone"`
	WindowDays  int    `koanf:"window_days" validate:"gte=0,lte=31"`
	Description string `koanf:"description"`
	Disabled    bool   `koanf:"disabled"`
}

// Notify configures the messaging gateway.
type Notify struct {
	Endpoint   string   `koanf:"endpoint" validate:"omitempty,url"`
	Token      string   `koanf:"token"`
	Recipients []string `koanf:"recipients"`
	Title      string   `koanf:"title"`
	Attach     bool     `koanf:"attach"`
	TimeoutMS  int      `koanf:"timeout_ms" validate:"gte=0"`
}

// Shift is an HH:MM window.
type Shift struct {
	In  string `koanf:"in" validate:"required,datetime=15:04"`
	Out string `koanf:"out" validate:"required,datetime=15:04"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Timezone:  "UTC",
		Source:    Database{Name: "access", Driver: "sqlite", DSN: "attendsync.db"},
		Target:    Database{Name: "attendance", Driver: "sqlite", DSN: "attendsync.db"},
		Sync: Sync{
			BatchSize:             500,
			ToleranceSeconds:      300,
			Mode:                  string(model.MatchFILO),
			DedupeEpsilonSeconds:  3,
			MaxWindowDays:         31,
			SampleSize:            10,
			Mirror:                true,
			OvernightSlackMinutes: 240,
		},
		Retry: Retry{
			MaxAttempts:      3,
			InitialBackoffMS: 200,
			MaxBackoffMS:     2000,
			TimeoutMS:        10_000,
		},
		Workers: Workers{
			Count:     runtime.NumCPU() * 2,
			QueueSize: 1024,
		},
		Scheduler: Scheduler{
			Entries: []ScheduleEntry{{Time: "02:00", WindowDays: 1, Description: "daily sync"}},
		},
		Notify: Notify{
			Title:     "Attendance sync report",
			TimeoutMS: 30_000,
		},
	}
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: time.Duration(c.Retry.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(c.Retry.MaxBackoffMS) * time.Millisecond,
		Timeout:        time.Duration(c.Retry.TimeoutMS) * time.Millisecond,
	}
}

// RunDefaults converts the sync section.
func (c *Config) RunDefaults() reconcile.Defaults {
	return reconcile.Defaults{
		BatchSize:      c.Sync.BatchSize,
		Tolerance:      time.Duration(c.Sync.ToleranceSeconds) * time.Second,
		Mode:           model.MatchMode(c.Sync.Mode),
		DedupeEpsilon:  time.Duration(c.Sync.DedupeEpsilonSeconds) * time.Second,
		MaxWindow:      time.Duration(c.Sync.MaxWindowDays) * 24 * time.Hour,
		SampleSize:     c.Sync.SampleSize,
		SkipMirror:     !c.Sync.Mirror,
		OvernightSlack: time.Duration(c.Sync.OvernightSlackMinutes) * time.Minute,
	}
}

// SyncSchedule converts the scheduler section. Entries without a timezone
// use the process timezone.
func (c *Config) SyncSchedule() model.SyncSchedule {
	out := model.SyncSchedule{Enabled: c.Scheduler.Enabled, Entries: make([]model.ScheduleEntry, 0, len(c.Scheduler.Entries))}
	for _, e := range c.Scheduler.Entries {
		tz := e.Timezone
		if tz == "" {
			tz = c.Timezone
		}
		out.Entries = append(out.Entries, model.ScheduleEntry{
			Time:        e.Time,
			Timezone:    tz,
			Enabled:     !e.Disabled,
			Description: e.Description,
			WindowDays:  e.WindowDays,
		})
	}
	return out
}

// Templates converts the shift overrides.
func (c *Config) Templates() (schedule.Templates, error) {
	out := make(schedule.Templates, len(c.Shifts))
	for name, s := range c.Shifts {
		typ := model.ParseScheduleType(name)
		if typ == model.ScheduleUnknown {
			return nil, wrapInvalid("shifts." + name + ": unknown schedule type")
		}
		in, err := model.ParseTimeOfDay(s.In)
		if err != nil {
			return nil, wrapInvalid("shifts." + name + ".in: " + err.Error())
		}
		outT, err := model.ParseTimeOfDay(s.Out)
		if err != nil {
			return nil, wrapInvalid("shifts." + name + ".out: " + err.Error())
		}
		out[typ] = model.ShiftWindow{In: in, Out: outT}
	}
	return out, nil
}

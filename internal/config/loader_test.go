package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/widjis/attend-now-report-view-sub001/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Sync.BatchSize, convey.ShouldEqual, 500)
				convey.So(cfg.Source.Driver, convey.ShouldEqual, "sqlite")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("ATTENDSYNC_ADDR", ":8080")
			t.Setenv("ATTENDSYNC_SYNC__BATCH_SIZE", "250")
			t.Setenv("ATTENDSYNC_SYNC__MODE", "nearest")
			t.Setenv("ATTENDSYNC_TARGET__DRIVER", "postgres")
			t.Setenv("ATTENDSYNC_TARGET__DSN", "host=db user=sync")
			t.Setenv("ATTENDSYNC_SCHEDULER__ENABLED", "true")
			t.Setenv("ATTENDSYNC_SYNC__MIRROR", "false")

			cfg, err := config.Load(ctx)

			convey.Convey("Then nested keys override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Sync.BatchSize, convey.ShouldEqual, 250)
				convey.So(cfg.Sync.Mode, convey.ShouldEqual, "nearest")
				convey.So(cfg.Sync.Mirror, convey.ShouldBeFalse)
				convey.So(cfg.RunDefaults().SkipMirror, convey.ShouldBeTrue)
				convey.So(cfg.Target.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Target.DSN, convey.ShouldEqual, "host=db user=sync")
				convey.So(cfg.Scheduler.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Sync.ToleranceSeconds, convey.ShouldEqual, 300)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeFile(t, "config.yaml", `
addr: ":9090"
timezone: "Asia/Makassar"
sync:
  batch_size: 100
  outside_range_fallback: true
extra_sources:
  - name: north
    driver: sqlite
    dsn: north.db
scheduler:
  enabled: true
  entries:
    - time: "06:30"
      window_days: 2
notify:
  endpoint: "https://gateway.example.com/send"
  recipients: ["628123", "628456"]
  attach: true
shifts:
  Fixed:
    in: "07:30"
    out: "16:30"
holidays: ["2024-03-11"]
`)
			t.Setenv("ATTENDSYNC_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Sync.BatchSize, convey.ShouldEqual, 100)
				convey.So(cfg.Sync.OutsideRangeFallback, convey.ShouldBeTrue)
				convey.So(cfg.Sync.DedupeEpsilonSeconds, convey.ShouldEqual, 3)
				convey.So(cfg.ExtraSources, convey.ShouldHaveLength, 1)
				convey.So(cfg.Notify.Recipients, convey.ShouldResemble, []string{"628123", "628456"})
				convey.So(cfg.Holidays, convey.ShouldResemble, []string{"2024-03-11"})

				sched := cfg.SyncSchedule()
				convey.So(sched.Enabled, convey.ShouldBeTrue)
				convey.So(sched.Entries[0].Time, convey.ShouldEqual, "06:30")
				convey.So(sched.Entries[0].Timezone, convey.ShouldEqual, "Asia/Makassar")
				convey.So(sched.Entries[0].WindowDays, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeFile(t, "config.yaml", "addr: \":9090\"\nsync:\n  batch_size: 100\n")
			t.Setenv("ATTENDSYNC_CONFIG", path)
			t.Setenv("ATTENDSYNC_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Sync.BatchSize, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When a .env file is named", func() {
			path := writeFile(t, "sync.env", "ATTENDSYNC_ADDR=:6060\nATTENDSYNC_LOG_LEVEL=debug\n")
			t.Setenv("ATTENDSYNC_DOTENV", path)
			t.Setenv("ATTENDSYNC_LOG_LEVEL", "warn")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
			})
			_ = os.Unsetenv("ATTENDSYNC_ADDR")
		})

		convey.Convey("When the named .env file is missing", func() {
			t.Setenv("ATTENDSYNC_DOTENV", filepath.Join(t.TempDir(), "missing.env"))
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			path := writeFile(t, "bad.yaml", `invalid: yaml: content: [`)
			t.Setenv("ATTENDSYNC_CONFIG", path)

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with empty addr", func() {
			t.Setenv("ATTENDSYNC_ADDR", "")

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			t.Setenv("ATTENDSYNC_SYNC__BATCH_SIZE", "lots")

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

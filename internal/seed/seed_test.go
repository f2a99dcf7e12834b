package seed_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/widjis/attend-now-report-view-sub001/internal/adapters/repository"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/seed"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func cleanConfig() seed.Config {
	cfg := seed.Defaults(monday)
	cfg.Employees = 7
	cfg.MissingRate, cfg.DuplicateRate, cfg.StrayRate = 0, 0, 0
	return cfg
}

func TestGenerate(t *testing.T) {
	Convey("Given a week for seven employees without noise", t, func() {
		cfg := cleanConfig()
		data, stats, err := seed.Generate(cfg)
		So(err, ShouldBeNil)

		Convey("Then fixed employees skip the weekend and shifts do not", func() {
			// 2 fixed x 5 weekdays + 5 shift workers x 7 days, two punches each
			So(stats.Employees, ShouldEqual, 7)
			So(stats.Transactions, ShouldEqual, 90)
			So(data.Transactions, ShouldHaveLength, 90)
			So(data.Employees[0].Schedule, ShouldEqual, model.ScheduleFixed)
			So(data.Employees[0].StaffNo, ShouldEqual, "EMP0001")
		})

		Convey("Then fixed clock-ins stay near 08:00", func() {
			for _, tx := range data.Transactions {
				if tx.StaffNo != "EMP0001" || tx.Kind != model.KindClockIn {
					continue
				}
				h, m, _ := tx.Timestamp.Clock()
				minutes := h*60 + m
				So(minutes, ShouldBeBetweenOrEqual, 7*60+35, 8*60+15)
				So(tx.Timestamp.Weekday(), ShouldNotEqual, time.Saturday)
				So(tx.Timestamp.Weekday(), ShouldNotEqual, time.Sunday)
			}
		})

		Convey("Then the same seed gives the same data", func() {
			again, _, err := seed.Generate(cfg)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, data)
		})
	})

	Convey("Given noisy rates", t, func() {
		cfg := cleanConfig()
		cfg.DuplicateRate, cfg.MissingRate = 1, 1
		_, stats, err := seed.Generate(cfg)
		So(err, ShouldBeNil)

		Convey("Then every shift has a duplicate in and no out", func() {
			So(stats.Duplicates, ShouldEqual, 45)
			So(stats.Missing, ShouldEqual, 45)
			So(stats.Transactions, ShouldEqual, 90)
		})
	})

	Convey("Given invalid settings", t, func() {
		for _, mutate := range []func(c *seed.Config){
			func(c *seed.Config) { c.Employees = 0 },
			func(c *seed.Config) { c.Days = 0 },
			func(c *seed.Config) { c.Controllers = nil },
			func(c *seed.Config) { c.MissingRate = 1.5 },
		} {
			cfg := cleanConfig()
			mutate(&cfg)
			_, _, err := seed.Generate(cfg)
			So(errors.Is(err, seed.ErrInvalidConfig), ShouldBeTrue)
		}
	})
}

func TestRun(t *testing.T) {
	Convey("Given a memory source", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithName("gate"))
		cfg := cleanConfig()
		cfg.BatchSize = 16
		cfg.OutputFile = filepath.Join(t.TempDir(), "punches.json")

		stats, err := seed.Run(ctx, cfg, store)
		So(err, ShouldBeNil)

		Convey("Then employees, assignments and punches are stored", func() {
			So(stats.Transactions, ShouldEqual, 90)
			_, ok := store.Employee("EMP0007")
			So(ok, ShouldBeTrue)
			a, err := store.Assignment(ctx, "EMP0004")
			So(err, ShouldBeNil)
			So(a.Type, ShouldEqual, model.ScheduleTwoShiftNight)
			So(store.PendingCount(), ShouldBeGreaterThan, 0)
		})

		Convey("Then the punches are dumped to the output file", func() {
			b, err := os.ReadFile(cfg.OutputFile)
			So(err, ShouldBeNil)
			var data seed.Data
			So(json.Unmarshal(b, &data), ShouldBeNil)
			So(data.Transactions, ShouldHaveLength, 90)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := seed.Run(ctx, cleanConfig(), repository.NewMemoryStore())
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

package service_test

import (
	"context"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/widjis/attend-now-report-view-sub001/internal/adapters/repository"
	service "github.com/widjis/attend-now-report-view-sub001/internal/app"
	"github.com/widjis/attend-now-report-view-sub001/internal/config"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
)

// seedSQLite writes employees and punches into a fresh sqlite file.
func seedSQLite(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(repository.DriverSQLite, dsn, logger.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = repository.Close(db) }()
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := repository.NewSQLStore(db, repository.WithLocation(wita))
	for _, staff := range []string{"E1", "E2", "E3"} {
		if err := st.PutEmployee(ctx, model.Employee{StaffNo: staff}, &model.ShiftAssignment{StaffNo: staff, Type: model.ScheduleFixed}); err != nil {
			t.Fatalf("employee: %v", err)
		}
		if _, err := st.AddTransactions(ctx,
			model.RawTransaction{StaffNo: staff, Timestamp: at("2024-03-04", "07:58"), Controller: "GATE-1", Kind: model.KindClockIn},
			model.RawTransaction{StaffNo: staff, Timestamp: at("2024-03-04", "17:03"), Controller: "GATE-2", Kind: model.KindClockOut},
		); err != nil {
			t.Fatalf("punches: %v", err)
		}
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service over a sqlite database", t, func() {
		ctx := context.Background()
		dsn := filepath.Join(t.TempDir(), "attendsync.db")
		seedSQLite(t, dsn)

		cfg := memoryConfig()
		cfg.AutoMigrate = true
		cfg.Source = config.Database{Name: "access", Driver: "sqlite", DSN: dsn}
		cfg.Target = config.Database{Name: "attendance", Driver: "sqlite", DSN: dsn}
		svc := service.New(cfg, service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When the day is validated, then run twice", func() {
			v, err := svc.Validate(ctx, monday, model.RunOptions{})
			So(err, ShouldBeNil)
			first, err := svc.Run(ctx, monday, model.RunOptions{})
			So(err, ShouldBeNil)
			second, err := svc.Run(ctx, monday, model.RunOptions{})
			So(err, ShouldBeNil)

			Convey("Then validation matched the run without writing", func() {
				So(v.Valid, ShouldEqual, first.Run.Counters.Valid)
			})

			Convey("Then the first run writes every group and the second none", func() {
				So(first.Run.Status, ShouldEqual, model.RunSuccess)
				So(first.Run.Counters.Inserted, ShouldEqual, 3)
				So(second.Run.Counters.Inserted, ShouldEqual, 0)
				So(svc.GetStats()["totalRecords"], ShouldEqual, int64(3))
			})

			Convey("Then both runs are persisted", func() {
				runs, err := svc.Runs(ctx, 10)
				So(err, ShouldBeNil)
				So(runs, ShouldHaveLength, 2)
				So(runs[0].ID, ShouldEqual, second.Run.ID)
			})
		})

		Convey("When the service is restarted", func() {
			_, err := svc.SetScheduleEnabled(ctx, true)
			So(err, ShouldBeNil)
			svc.Stop(ctx)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then the stored schedule survives", func() {
				sched, err := svc.Schedule(ctx)
				So(err, ShouldBeNil)
				So(sched.Enabled, ShouldBeTrue)
			})
		})
	})
}

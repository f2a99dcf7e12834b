package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/schedule"
)

var wita = time.FixedZone("WITA", 8*3600)

// contract is what both stores offer; the shared tests run against each.
type contract interface {
	Name() string
	Ping(ctx context.Context) error
	AddTransactions(ctx context.Context, txns ...model.RawTransaction) ([]int64, error)
	PendingKeys(ctx context.Context, w model.Window, after model.GroupKey, limit int) ([]model.GroupKey, error)
	Fetch(ctx context.Context, w model.Window, keys []model.GroupKey) ([]model.RawTransaction, error)
	MarkProcessed(ctx context.Context, ids []int64) error
	PutEmployee(ctx context.Context, e model.Employee, a *model.ShiftAssignment) error
	Assignment(ctx context.Context, staffNo string) (model.ShiftAssignment, error)
	Upsert(ctx context.Context, rec *model.CanonicalRecord) (bool, error)
	Record(ctx context.Context, k model.GroupKey) (model.CanonicalRecord, bool, error)
	CountRecords(ctx context.Context) (int64, error)
	SaveRun(ctx context.Context, run *model.SyncRun) error
	ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
	LoadSchedule(ctx context.Context) (model.SyncSchedule, error)
	SaveSchedule(ctx context.Context, s model.SyncSchedule) error
}

type storeFactory struct {
	name string
	make func(t *testing.T, opts ...Option) contract
}

func factories() []storeFactory {
	return []storeFactory{
		{"memory", func(_ *testing.T, opts ...Option) contract { return NewMemoryStore(opts...) }},
		{"sqlite", func(t *testing.T, opts ...Option) contract {
			db, err := Open(DriverSQLite, ":memory:", nil)
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			if err := Migrate(db); err != nil {
				t.Fatalf("migrate: %v", err)
			}
			t.Cleanup(func() { _ = Close(db) })
			return NewSQLStore(db, opts...)
		}},
	}
}

func at(day, hm string) time.Time {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", day+" "+hm, wita)
	if err != nil {
		panic(err)
	}
	return ts
}

func punch(staff string, ts time.Time, kind model.EventKind) model.RawTransaction {
	return model.RawTransaction{StaffNo: staff, Timestamp: ts, Controller: "GATE-1", Kind: kind}
}

func TestStoreContract(t *testing.T) {
	for _, f := range factories() {
		f := f
		Convey("Given a "+f.name+" store with punches on two days", t, func() {
			ctx := context.Background()
			clock := at("2024-03-05", "10:00:00")
			s := f.make(t, WithName("src"), WithLocation(wita), WithClock(func() time.Time { return clock }))
			ids, err := s.AddTransactions(ctx,
				punch("E2", at("2024-03-01", "08:00:00"), model.KindClockIn),
				punch("E1", at("2024-03-01", "08:05:00"), model.KindClockIn),
				punch("E1", at("2024-03-01", "17:00:00"), model.KindClockOut),
				punch("E1", at("2024-03-02", "08:00:00"), model.KindOutsideRange),
				punch("E3", at("2024-03-09", "08:00:00"), model.KindClockIn),
			)
			So(err, ShouldBeNil)
			So(ids, ShouldHaveLength, 5)
			w := model.Window{Start: at("2024-03-01", "00:00:00"), End: at("2024-03-03", "00:00:00")}

			So(s.Name(), ShouldEqual, "src")
			So(s.Ping(ctx), ShouldBeNil)

			Convey("When listing pending keys", func() {
				keys, err := s.PendingKeys(ctx, w, model.GroupKey{}, 10)
				So(err, ShouldBeNil)

				Convey("Then keys inside the window come back in date, staff order", func() {
					So(keys, ShouldResemble, []model.GroupKey{
						{StaffNo: "E1", Date: "2024-03-01"},
						{StaffNo: "E2", Date: "2024-03-01"},
						{StaffNo: "E1", Date: "2024-03-02"},
					})
				})

				Convey("Then paging with a cursor continues after it", func() {
					page, err := s.PendingKeys(ctx, w, keys[0], 1)
					So(err, ShouldBeNil)
					So(page, ShouldResemble, []model.GroupKey{{StaffNo: "E2", Date: "2024-03-01"}})
				})

				Convey("Then a non-positive limit is rejected", func() {
					_, err := s.PendingKeys(ctx, w, model.GroupKey{}, 0)
					So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
				})
			})

			Convey("When fetching one key", func() {
				rows, err := s.Fetch(ctx, w, []model.GroupKey{{StaffNo: "E1", Date: "2024-03-01"}})
				So(err, ShouldBeNil)

				Convey("Then only that group's reads are returned with kinds intact", func() {
					So(rows, ShouldHaveLength, 2)
					So(rows[0].Kind, ShouldEqual, model.KindClockIn)
					So(rows[1].Kind, ShouldEqual, model.KindClockOut)
					So(rows[0].Source, ShouldEqual, "src")
					So(rows[0].Timestamp.Equal(at("2024-03-01", "08:05:00")), ShouldBeTrue)
				})
			})

			Convey("When reads are marked processed", func() {
				So(s.MarkProcessed(ctx, ids[1:3]), ShouldBeNil)

				Convey("Then their key is no longer pending", func() {
					keys, err := s.PendingKeys(ctx, w, model.GroupKey{}, 10)
					So(err, ShouldBeNil)
					So(keys, ShouldResemble, []model.GroupKey{
						{StaffNo: "E2", Date: "2024-03-01"},
						{StaffNo: "E1", Date: "2024-03-02"},
					})
					rows, err := s.Fetch(ctx, w, []model.GroupKey{{StaffNo: "E1", Date: "2024-03-01"}})
					So(err, ShouldBeNil)
					So(rows, ShouldBeEmpty)
				})
			})

			Convey("When looking up assignments", func() {
				So(s.PutEmployee(ctx, model.Employee{StaffNo: "E1", Name: "Ana"}, &model.ShiftAssignment{
					Type: model.ScheduleFixed,
					Overrides: map[model.DayClass]model.ShiftWindow{
						model.DayWeekend: {In: model.MustTimeOfDay("09:00"), Out: model.MustTimeOfDay("13:00")},
					},
				}), ShouldBeNil)
				So(s.PutEmployee(ctx, model.Employee{StaffNo: "E9", Name: "No Shift"}, nil), ShouldBeNil)

				Convey("Then an assigned employee resolves with overrides", func() {
					a, err := s.Assignment(ctx, "E1")
					So(err, ShouldBeNil)
					So(a.Type, ShouldEqual, model.ScheduleFixed)
					So(a.Overrides[model.DayWeekend].In, ShouldEqual, model.MustTimeOfDay("09:00"))
				})

				Convey("Then missing or unassigned employees are not found", func() {
					_, err := s.Assignment(ctx, "E404")
					So(errors.Is(err, schedule.ErrNotFound), ShouldBeTrue)
					_, err = s.Assignment(ctx, "E9")
					So(errors.Is(err, schedule.ErrNotFound), ShouldBeTrue)
				})
			})

			Convey("When a record is upserted twice", func() {
				in := at("2024-03-01", "08:05:00")
				rec := &model.CanonicalRecord{
					StaffNo: "E1", Date: "2024-03-01", ScheduleType: model.ScheduleFixed,
					ActualIn: &in, InController: "GATE-1", InStatus: model.StatusOnTime, OutStatus: model.StatusMissing,
				}
				created, err := s.Upsert(ctx, rec)
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)

				clock = clock.Add(time.Hour)
				again := *rec
				again.OutStatus = model.StatusLate
				created, err = s.Upsert(ctx, &again)
				So(err, ShouldBeNil)

				Convey("Then one row exists, updated in place", func() {
					So(created, ShouldBeFalse)
					n, err := s.CountRecords(ctx)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)

					got, ok, err := s.Record(ctx, model.GroupKey{StaffNo: "E1", Date: "2024-03-01"})
					So(err, ShouldBeNil)
					So(ok, ShouldBeTrue)
					So(got.OutStatus, ShouldEqual, model.StatusLate)
					So(got.InController, ShouldEqual, "GATE-1")
					So(got.ActualIn.Equal(in), ShouldBeTrue)
					So(got.UpdatedAt.After(got.CreatedAt), ShouldBeTrue)
				})
			})

			Convey("When runs are saved", func() {
				first := &model.SyncRun{
					ID: "run-1", Window: w, Status: model.RunRunning, Initiator: "manual",
					StartedAt: at("2024-03-05", "01:00:00"),
				}
				So(s.SaveRun(ctx, first), ShouldBeNil)
				first.Status = model.RunSuccess
				first.Counters = model.Counters{Retrieved: 3, Processed: 2, Inserted: 2}
				first.Warnings = []model.Issue{{Code: model.IssueScheduleNotFound, Key: "2024-03-01/E2", Message: "none"}}
				first.FinishedAt = at("2024-03-05", "01:00:05")
				first.Duration = 5 * time.Second
				So(s.SaveRun(ctx, first), ShouldBeNil)
				So(s.SaveRun(ctx, &model.SyncRun{ID: "run-2", Window: w, Status: model.RunError, StartedAt: at("2024-03-05", "02:00:00")}), ShouldBeNil)

				Convey("Then they list newest first with their details", func() {
					runs, err := s.ListRuns(ctx, 10)
					So(err, ShouldBeNil)
					So(runs, ShouldHaveLength, 2)
					So(runs[0].ID, ShouldEqual, "run-2")
					So(runs[1].Status, ShouldEqual, model.RunSuccess)
					So(runs[1].Counters.Inserted, ShouldEqual, 2)
					So(runs[1].Warnings, ShouldHaveLength, 1)
					So(runs[1].Duration, ShouldEqual, 5*time.Second)
				})
			})

			Convey("When the schedule is saved", func() {
				_, err := s.LoadSchedule(ctx)
				So(errors.Is(err, ErrNoSchedule), ShouldBeTrue)

				next := at("2024-03-06", "01:00:00")
				So(s.SaveSchedule(ctx, model.SyncSchedule{Enabled: true, Entries: []model.ScheduleEntry{
					{ID: "b", Time: "01:00", Timezone: "Asia/Makassar", Enabled: true, WindowDays: 1, NextRun: &next},
					{ID: "a", Time: "13:00", Timezone: "UTC", Enabled: false},
				}}), ShouldBeNil)
				So(s.SaveSchedule(ctx, model.SyncSchedule{Enabled: false, Entries: []model.ScheduleEntry{
					{ID: "b", Time: "02:00", Timezone: "Asia/Makassar", Enabled: true, WindowDays: 1, NextRun: &next},
					{ID: "a", Time: "13:00", Timezone: "UTC"},
				}}), ShouldBeNil)

				Convey("Then the latest version loads in entry order", func() {
					got, err := s.LoadSchedule(ctx)
					So(err, ShouldBeNil)
					So(got.Enabled, ShouldBeFalse)
					So(got.Entries, ShouldHaveLength, 2)
					So(got.Entries[0].ID, ShouldEqual, "b")
					So(got.Entries[0].Time, ShouldEqual, "02:00")
					So(got.Entries[0].NextRun.Equal(next), ShouldBeTrue)
				})
			})
		})
	}
}

func TestOpen(t *testing.T) {
	Convey("Given an unknown driver", t, func() {
		_, err := Open("oracle", "x", nil)
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
	})
}

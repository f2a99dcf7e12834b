package classify_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/classify"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

func at(h, m int) *time.Time {
	t := time.Date(2024, 3, 1, h, m, 0, 0, time.UTC)
	return &t
}

func TestClassify(t *testing.T) {
	Convey("Given a 09:00 schedule with a 300s tolerance", t, func() {
		base := classify.Input{
			ScheduleType: model.ScheduleFixed,
			Scheduled:    *at(9, 0),
			Kind:         model.KindClockIn,
			Tolerance:    300 * time.Second,
			Edge:         model.EdgeIn,
		}
		with := func(actual *time.Time) classify.Input {
			in := base
			in.Actual = actual
			return in
		}

		Convey("Then 09:04 is on time", func() {
			So(classify.Classify(with(at(9, 4))), ShouldEqual, model.StatusOnTime)
		})
		Convey("Then 09:10 is late", func() {
			So(classify.Classify(with(at(9, 10))), ShouldEqual, model.StatusLate)
		})
		Convey("Then 08:50 is early", func() {
			So(classify.Classify(with(at(8, 50))), ShouldEqual, model.StatusEarly)
		})
		Convey("Then an absent punch is missing", func() {
			So(classify.Classify(with(nil)), ShouldEqual, model.StatusMissing)
		})
		Convey("Then the band edges are inclusive", func() {
			So(classify.Classify(with(at(9, 5))), ShouldEqual, model.StatusOnTime)
			So(classify.Classify(with(at(8, 55))), ShouldEqual, model.StatusOnTime)
		})
		Convey("Then an outside-range punch is out of range", func() {
			in := with(at(9, 0))
			in.Kind = model.KindOutsideRange
			So(classify.Classify(in), ShouldEqual, model.StatusOutOfRange)
		})
		Convey("Then an unknown schedule is not evaluated", func() {
			in := with(at(9, 30))
			in.ScheduleType = model.ScheduleUnknown
			So(classify.Classify(in), ShouldEqual, model.StatusNone)
			in.Actual = nil
			So(classify.Classify(in), ShouldEqual, model.StatusNone)
		})
		Convey("Then leaving early at clock-out is early", func() {
			in := with(at(16, 0))
			in.Scheduled = *at(17, 0)
			in.Edge = model.EdgeOut
			So(classify.Classify(in), ShouldEqual, model.StatusEarly)
		})
	})
}

func TestDay(t *testing.T) {
	Convey("Given a fixed 08:00-17:00 schedule", t, func() {
		sched := model.ShiftSchedule{
			StaffNo: "MTI001",
			Date:    "2024-03-01",
			Type:    model.ScheduleFixed,
			Window:  model.ShiftWindow{In: model.MustTimeOfDay("08:00"), Out: model.MustTimeOfDay("17:00")},
		}

		Convey("When only the clock-in was matched", func() {
			p, err := classify.Day(sched, &classify.Punch{At: *at(8, 20), Kind: model.KindClockIn}, nil, 5*time.Minute, time.UTC)

			Convey("Then in is late and out is missing", func() {
				So(err, ShouldBeNil)
				So(p.In, ShouldEqual, model.StatusLate)
				So(p.Out, ShouldEqual, model.StatusMissing)
			})
		})

		Convey("When the schedule is unknown", func() {
			sched.Type = model.ScheduleUnknown
			p, err := classify.Day(sched, &classify.Punch{At: *at(8, 0)}, nil, 0, time.UTC)

			Convey("Then both edges are absent", func() {
				So(err, ShouldBeNil)
				So(p.In, ShouldEqual, model.StatusNone)
				So(p.Out, ShouldEqual, model.StatusNone)
			})
		})
	})
}

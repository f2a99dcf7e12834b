package model_test

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	model "github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

func TestParseEventKind(t *testing.T) {
	convey.Convey("Given controller event labels", t, func() {
		convey.Convey("When parsing known labels", func() {
			in, err1 := model.ParseEventKind("Clock In")
			out, err2 := model.ParseEventKind("CLOCK_OUT")
			oor, err3 := model.ParseEventKind("Outside Range")

			convey.Convey("Then they map onto the closed enum", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(err3, convey.ShouldBeNil)
				convey.So(in, convey.ShouldEqual, model.KindClockIn)
				convey.So(out, convey.ShouldEqual, model.KindClockOut)
				convey.So(oor, convey.ShouldEqual, model.KindOutsideRange)
				convey.So(oor.String(), convey.ShouldEqual, "Outside Range")
			})
		})

		convey.Convey("When parsing an unknown label", func() {
			_, err := model.ParseEventKind("Door Forced")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestTimeOfDay(t *testing.T) {
	convey.Convey("Given times of day", t, func() {
		convey.Convey("When parsing HH:MM and HH:MM:SS", func() {
			a, err := model.ParseTimeOfDay("09:00")
			convey.So(err, convey.ShouldBeNil)
			b, err := model.ParseTimeOfDay("17:30:15")
			convey.So(err, convey.ShouldBeNil)

			convey.So(a.String(), convey.ShouldEqual, "09:00:00")
			convey.So(b.String(), convey.ShouldEqual, "17:30:15")
		})

		convey.Convey("When parsing garbage", func() {
			_, err := model.ParseTimeOfDay("25:99")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When anchoring an overnight shift", func() {
			s := model.ShiftSchedule{
				Date: "2024-03-01",
				Type: model.ScheduleTwoShiftNight,
				Window: model.ShiftWindow{
					In:  model.MustTimeOfDay("19:00"),
					Out: model.MustTimeOfDay("07:00"),
				},
			}
			in, err := s.ScheduledIn(time.UTC)
			convey.So(err, convey.ShouldBeNil)
			out, err := s.ScheduledOut(time.UTC)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then clock-out falls on the next day", func() {
				convey.So(in, convey.ShouldEqual, time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC))
				convey.So(out, convey.ShouldEqual, time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC))
			})
		})
	})
}

func TestDayWindow(t *testing.T) {
	convey.Convey("Given a clock reading mid-morning", t, func() {
		loc := time.FixedZone("WITA", 8*3600)
		now := time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC) // 10:00 local

		convey.Convey("When asking for yesterday", func() {
			w := model.DayWindow(now, 1, loc)

			convey.So(w.Start, convey.ShouldEqual, time.Date(2024, 3, 4, 0, 0, 0, 0, loc))
			convey.So(w.End, convey.ShouldEqual, time.Date(2024, 3, 5, 0, 0, 0, 0, loc))
			convey.So(w.Span(), convey.ShouldEqual, 24*time.Hour)
			convey.So(w.Contains(w.Start), convey.ShouldBeTrue)
			convey.So(w.Contains(w.End), convey.ShouldBeFalse)
		})
	})
}

func TestCanonicalRecordValid(t *testing.T) {
	convey.Convey("Given canonical records", t, func() {
		ok := model.CanonicalRecord{InStatus: model.StatusOnTime, OutStatus: model.StatusLate}
		missing := model.CanonicalRecord{InStatus: model.StatusOnTime, OutStatus: model.StatusMissing}
		unknown := model.CanonicalRecord{ScheduleType: model.ScheduleUnknown}

		convey.So(ok.Valid(), convey.ShouldBeTrue)
		convey.So(missing.Valid(), convey.ShouldBeFalse)
		convey.So(unknown.Valid(), convey.ShouldBeFalse)
		convey.So(model.ParseScheduleType("twoshift_night"), convey.ShouldEqual, model.ScheduleTwoShiftNight)
		convey.So(model.ParseScheduleType("rotating"), convey.ShouldEqual, model.ScheduleUnknown)
	})
}

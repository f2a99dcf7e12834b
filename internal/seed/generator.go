package seed

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/schedule"
)

// Jitter bounds around the scheduled times.
const (
	inEarliest  = -25 * time.Minute
	inSpread    = 40 * time.Minute
	outEarliest = -15 * time.Minute
	outSpread   = 60 * time.Minute
	dupMaxGap   = 3 * time.Second
)

// scheduleMix is assigned round-robin so every type shows up.
var scheduleMix = []model.ScheduleType{
	model.ScheduleFixed,
	model.ScheduleFixed,
	model.ScheduleTwoShiftDay,
	model.ScheduleTwoShiftNight,
	model.ScheduleThreeShiftMorning,
	model.ScheduleThreeShiftAfternoon,
	model.ScheduleThreeShiftNight,
}

var departments = []string{"Operations", "Maintenance", "Security", "Finance", "HR"}

// Generate builds employees and their punches. Fixed-schedule employees do
// not work on weekends.
func Generate(cfg Config) (Data, Stats, error) {
	if err := cfg.validate(); err != nil {
		return Data{}, Stats{}, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	cal := schedule.NewCalendar()
	templates := schedule.DefaultTemplates()
	start := time.Date(cfg.From.Year(), cfg.From.Month(), cfg.From.Day(), 0, 0, 0, 0, loc)

	var (
		data  Data
		stats Stats
	)
	for i := 0; i < cfg.Employees; i++ {
		e := Employee{
			Employee: model.Employee{
				StaffNo:    fmt.Sprintf("EMP%04d", i+1),
				Name:       fmt.Sprintf("Employee %d", i+1),
				Department: departments[i%len(departments)],
			},
			Schedule: scheduleMix[i%len(scheduleMix)],
		}
		data.Employees = append(data.Employees, e)

		for d := 0; d < cfg.Days; d++ {
			day := start.AddDate(0, 0, d)
			class := cal.Classify(day)
			if e.Schedule == model.ScheduleFixed && class != model.DayWeekday {
				continue
			}
			sched := schedule.Resolve(
				model.ShiftAssignment{StaffNo: e.StaffNo, Type: e.Schedule},
				day.Format(model.DateLayout), class, templates,
			)
			in, err := sched.ScheduledIn(loc)
			if err != nil {
				return Data{}, Stats{}, err
			}
			out, err := sched.ScheduledOut(loc)
			if err != nil {
				return Data{}, Stats{}, err
			}

			gate := cfg.Controllers[rng.IntN(len(cfg.Controllers))]
			clockIn := in.Add(inEarliest + jitter(rng, inSpread))
			data.Transactions = append(data.Transactions, punch(e.StaffNo, clockIn, gate, model.KindClockIn))

			if rng.Float64() < cfg.DuplicateRate {
				gap := time.Duration(rng.Int64N(int64(dupMaxGap))) + time.Second
				data.Transactions = append(data.Transactions, punch(e.StaffNo, clockIn.Add(gap), gate, model.KindClockIn))
				stats.Duplicates++
			}
			if rng.Float64() < cfg.StrayRate {
				mid := clockIn.Add(out.Sub(in) / 2)
				data.Transactions = append(data.Transactions, punch(e.StaffNo, mid, gate, model.KindOutsideRange))
				stats.Stray++
			}
			if rng.Float64() < cfg.MissingRate {
				stats.Missing++
				continue
			}
			exit := cfg.Controllers[rng.IntN(len(cfg.Controllers))]
			data.Transactions = append(data.Transactions, punch(e.StaffNo, out.Add(outEarliest+jitter(rng, outSpread)), exit, model.KindClockOut))
		}
	}
	stats.Employees = len(data.Employees)
	stats.Transactions = len(data.Transactions)
	return data, stats, nil
}

func jitter(rng *rand.Rand, spread time.Duration) time.Duration {
	// whole minutes keep the data readable
	return time.Duration(rng.Int64N(int64(spread/time.Minute)+1)) * time.Minute
}

func punch(staff string, ts time.Time, controller string, kind model.EventKind) model.RawTransaction {
	return model.RawTransaction{StaffNo: staff, Timestamp: ts, Controller: controller, Kind: kind}
}

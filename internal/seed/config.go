// Package seed generates synthetic employees and access-control punches for
// development databases.
package seed

import (
	"errors"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// ErrInvalidConfig is returned for out-of-range generator settings.
var ErrInvalidConfig = errors.New("invalid seed config")

// Config holds configuration for the generator.
type Config struct {
	Employees     int            // Number of employees
	From          time.Time      // First work date (local midnight)
	Days          int            // Number of work dates
	Location      *time.Location // Zone of the work dates
	Controllers   []string       // Door controllers punches are read on
	MissingRate   float64        // Share of shifts without a clock-out
	DuplicateRate float64        // Share of clock-ins read twice within seconds
	StrayRate     float64        // Share of shifts with an extra out-of-range read
	Seed          uint64         // Random seed; equal seeds give equal output
	BatchSize     int            // Transactions per insert
	OutputFile    string         // Optional JSON dump of the generated punches
}

// Defaults returns a small, deterministic data set starting on from.
func Defaults(from time.Time) Config {
	return Config{
		Employees:     50,
		From:          from,
		Days:          7,
		Location:      time.UTC,
		Controllers:   []string{"GATE-1", "GATE-2", "LOBBY"},
		MissingRate:   0.05,
		DuplicateRate: 0.10,
		StrayRate:     0.05,
		Seed:          1,
		BatchSize:     500,
	}
}

func (c Config) validate() error {
	switch {
	case c.Employees < 1:
		return errors.Join(ErrInvalidConfig, errors.New("employees must be positive"))
	case c.Days < 1:
		return errors.Join(ErrInvalidConfig, errors.New("days must be positive"))
	case len(c.Controllers) == 0:
		return errors.Join(ErrInvalidConfig, errors.New("at least one controller is required"))
	case !rate(c.MissingRate) || !rate(c.DuplicateRate) || !rate(c.StrayRate):
		return errors.Join(ErrInvalidConfig, errors.New("rates must be within [0, 1]"))
	}
	return nil
}

func rate(r float64) bool { return r >= 0 && r <= 1 }

// Data is the generator output.
type Data struct {
	Employees    []Employee             `json:"employees"`
	Transactions []model.RawTransaction `json:"transactions"`
}

// Employee pairs an employee with the schedule type it is assigned.
type Employee struct {
	model.Employee
	Schedule model.ScheduleType `json:"schedule"`
}

// Stats holds run statistics.
type Stats struct {
	Employees    int
	Transactions int
	Duplicates   int
	Missing      int
	Stray        int
	Duration     time.Duration
}

package instruments

import (
	"errors"
	"time"
)

// Frequency is the recurrence interval of a maintenance obligation.
type Frequency string

const (
	FrequencyWeekly      Frequency = "Weekly"
	FrequencyMonthly     Frequency = "Monthly"
	FrequencyThreeMonths Frequency = "3 Months"
	FrequencySixMonths   Frequency = "6 Months"
	FrequencyOneYear     Frequency = "1 Year"
)

// NormalizeFrequency validates a frequency string.
func NormalizeFrequency(value string) (Frequency, bool) {
	switch Frequency(value) {
	case FrequencyWeekly, FrequencyMonthly, FrequencyThreeMonths, FrequencySixMonths, FrequencyOneYear:
		return Frequency(value), true
	default:
		return "", false
	}
}

// Valid returns true when the frequency is supported.
func (f Frequency) Valid() bool {
	_, ok := NormalizeFrequency(string(f))
	return ok
}

// Instrument represents a registered laboratory instrument.
// NextMaintenanceDate is derived from ScheduleDate, Frequency and the count
// of completed maintenance events; it is never hand-edited once a completion
// exists.
type Instrument struct {
	ID                  string     `json:"id"`
	EqpID               string     `json:"eqp_id"`
	Serial              string     `json:"serial"`
	Make                string     `json:"make"`
	Model               string     `json:"model"`
	Location            string     `json:"location"`
	MaintenanceType     string     `json:"maintenance_type"`
	Frequency           Frequency  `json:"frequency,omitempty"`
	ScheduleDate        *time.Time `json:"schedule_date,omitempty"`
	NextMaintenanceDate *time.Time `json:"next_maintenance_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Validate checks instrument invariants.
func (i Instrument) Validate() error {
	if i.ID == "" {
		return errors.New("instrument: empty id")
	}
	if i.EqpID == "" {
		return errors.New("instrument: empty eqp id")
	}
	if i.Frequency != "" && !i.Frequency.Valid() {
		return errors.New("instrument: invalid frequency")
	}
	if i.ScheduleDate != nil && i.ScheduleDate.IsZero() {
		return errors.New("instrument: zero schedule date")
	}
	return nil
}

// Scheduled reports whether the instrument carries complete schedule
// parameters. An unscheduled instrument yields no maintenance events; this
// is a valid configuration, not an error.
func (i Instrument) Scheduled() bool {
	return i.ScheduleDate != nil && !i.ScheduleDate.IsZero() && i.Frequency.Valid()
}

package model

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is a (date, time) pair at which a trial may be scheduled.
// Values are compared as stored, without timezone normalization.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Validate checks the date and time formats
func (s Slot) Validate() error {
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s.Date)
	}
	if _, err := time.Parse(TimeLayout, s.Time); err != nil {
		return fmt.Errorf("invalid time %q, expected HH:MM", s.Time)
	}
	return nil
}

// In resolves the slot to an instant in a fixed zone offsetMinutes east of UTC.
func (s Slot) In(offsetMinutes int) (time.Time, error) {
	zone := time.FixedZone("case", offsetMinutes*60)
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot: %w", err)
	}
	return t, nil
}

func (s Slot) String() string {
	return s.Date + " " + s.Time
}

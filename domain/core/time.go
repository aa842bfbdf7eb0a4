package core

import (
	"time"
)

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before returns true if t is before u
func (t Timestamp) Before(u Timestamp) bool {
	return time.Time(t).Before(time.Time(u))
}

// After returns true if t is after u
func (t Timestamp) After(u Timestamp) bool {
	return time.Time(t).After(time.Time(u))
}

// JSON marshaling for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}

// Day represents a calendar day. Time-of-day is always truncated so that
// daily aggregation buckets and change-point dates compare by value.
type Day time.Time

// NewDay truncates t to midnight UTC
func NewDay(t time.Time) Day {
	y, m, d := t.UTC().Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// Time returns the underlying time.Time at midnight UTC
func (d Day) Time() time.Time { return time.Time(d) }

// IsZero checks if the day is unset
func (d Day) IsZero() bool { return time.Time(d).IsZero() }

// Before returns true if d is before u
func (d Day) Before(u Day) bool { return time.Time(d).Before(time.Time(u)) }

// Equal returns true if both days are the same calendar day
func (d Day) Equal(u Day) bool { return time.Time(d).Equal(time.Time(u)) }

// AddDays returns the day n days later
func (d Day) AddDays(n int) Day { return Day(time.Time(d).AddDate(0, 0, n)) }

// DaysUntil returns the whole-day span between d and u
func (d Day) DaysUntil(u Day) int {
	return int(time.Time(u).Sub(time.Time(d)).Hours() / 24)
}

// String formats the day as YYYY-MM-DD
func (d Day) String() string { return time.Time(d).Format("2006-01-02") }

// MarshalJSON encodes the day as "YYYY-MM-DD"
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" day
func (d *Day) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	*d = NewDay(t)
	return nil
}

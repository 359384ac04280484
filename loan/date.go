package loan

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (start dates, end dates, due dates)
// =============================================================================

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. The time-of-day is always midnight.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate panics on malformed input. Tests and literals only.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool       { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool        { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool        { return d.Time.Equal(o.Time) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) IsZero() bool             { return d.Time.IsZero() }

// Arithmetic. AddMonths follows time.AddDate normalization: Jan 31 plus one
// month is Mar 2 or Mar 3, the same overflow rule calendar libraries use.
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }

func (d Date) String() string { return d.Time.Format(DateLayout) }

// DaysBetween counts whole days from d to o (negative if o is earlier).
func DaysBetween(d, o Date) int { return int(o.Time.Sub(d.Time).Hours() / 24) }

package shared

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Period is an accounting period encoded as YYYYMM, e.g. 202409.
type Period int

// PeriodOf returns the period containing the given date.
func PeriodOf(t time.Time) Period {
	return Period(t.Year()*100 + int(t.Month()))
}

// ParsePeriod parses a YYYYMM string.
func ParsePeriod(s string) (Period, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("shared: parse period %q: %w", s, err)
	}
	p := Period(n)
	if !p.Valid() {
		return 0, fmt.Errorf("shared: period %q out of range", s)
	}
	return p, nil
}

// Valid reports whether the period encodes a real year/month pair.
func (p Period) Valid() bool {
	m := int(p) % 100
	y := int(p) / 100
	return m >= 1 && m <= 12 && y >= 1900 && y <= 9999
}

// Year returns the calendar year component.
func (p Period) Year() int { return int(p) / 100 }

// Month returns the calendar month component.
func (p Period) Month() time.Month { return time.Month(int(p) % 100) }

// Add moves the period forward (or backward) by n calendar months.
func (p Period) Add(n int) Period {
	months := p.Year()*12 + int(p.Month()) - 1 + n
	return Period((months/12)*100 + months%12 + 1)
}

// MonthsSince returns the number of whole months from other up to p.
// Positive when p is later than other.
func (p Period) MonthsSince(other Period) int {
	return (p.Year()*12 + int(p.Month())) - (other.Year()*12 + int(other.Month()))
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year(), p.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last day of the period. The month-end day
// itself belongs to this period; spans that cross it are split after this day.
func (p Period) End() time.Time {
	return p.Add(1).Start().AddDate(0, 0, -1)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	return int(p.Add(1).Start().Sub(p.Start()).Hours() / 24)
}

// Contains reports whether the date falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

func (p Period) String() string {
	return fmt.Sprintf("%06d", int(p))
}

// Period statuses reused by posting guards outside the accounting module.
const (
	PeriodStatusOpen   = "OPEN"
	PeriodStatusClosed = "CLOSED"
	PeriodStatusLocked = "LOCKED"
)

// ErrPeriodNotPostable indicates the period does not accept new postings.
var ErrPeriodNotPostable = errors.New("shared: period not open for posting")

// EnsurePostable validates that a period status accepts postings.
func EnsurePostable(status string) error {
	if status != PeriodStatusOpen {
		return ErrPeriodNotPostable
	}
	return nil
}

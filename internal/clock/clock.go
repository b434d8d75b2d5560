// Package clock supplies the current instant and the calendar arithmetic used
// for every "day" and "hour" decision. All day math happens in a single
// reference zone; callers convert to UTC only when persisting.
package clock

import (
	"fmt"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

// Now returns the current instant in UTC.
func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return time.Time(f) }

// Date is a calendar date in the reference zone.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Zone performs calendar arithmetic in one civil timezone.
type Zone struct {
	loc *time.Location
}

// LoadZone loads the named IANA timezone.
func LoadZone(name string) (Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// NewZone wraps an already loaded location.
func NewZone(loc *time.Location) Zone {
	return Zone{loc: loc}
}

// Location returns the zone's location, UTC for the zero Zone.
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// StartOfLocalDay returns local midnight of the day containing t.
func (z Zone) StartOfLocalDay(t time.Time) time.Time {
	lt := t.In(z.Location())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, z.Location())
}

// AddDays moves t by n calendar days keeping the wall clock, so a DST change
// in between does not shift midnight to 23:00 or 01:00.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// LocalDate returns the reference-zone calendar date of t.
func (z Zone) LocalDate(t time.Time) Date {
	lt := t.In(z.Location())
	return Date{Year: lt.Year(), Month: int(lt.Month()), Day: lt.Day()}
}

// At returns the instant of hour:minute:00 on date d in the zone.
func (z Zone) At(d Date, hour, minute int) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, hour, minute, 0, 0, z.Location())
}

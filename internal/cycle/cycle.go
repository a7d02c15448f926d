// Package cycle maps Solar Hijri (Jalali) calendar months, the budgeting
// periods of the tracker, onto continuous time.
package cycle

import (
	"fmt"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// Cycle is a single Solar Hijri month.
type Cycle struct {
	Year  int
	Month int
}

// Valid reports whether c names a real month.
func (c Cycle) Valid() bool {
	return c.Year > 0 && c.Month >= 1 && c.Month <= 12
}

// Next returns the following month, rolling into the next year after Esfand.
func (c Cycle) Next() Cycle {
	if c.Month == 12 {
		return Cycle{Year: c.Year + 1, Month: 1}
	}
	return Cycle{Year: c.Year, Month: c.Month + 1}
}

// Prev returns the preceding month, rolling back a year before Farvardin.
func (c Cycle) Prev() Cycle {
	if c.Month == 1 {
		return Cycle{Year: c.Year - 1, Month: 12}
	}
	return Cycle{Year: c.Year, Month: c.Month - 1}
}

// Index encodes the cycle as a strictly increasing integer. It is never zero
// for a valid cycle, so zero can stand for "never observed".
func (c Cycle) Index() int {
	return c.Year*12 + c.Month - 1
}

// FromIndex is the inverse of Index.
func FromIndex(i int) Cycle {
	return Cycle{Year: i / 12, Month: i%12 + 1}
}

// MonthName returns the Persian name of the month.
func (c Cycle) MonthName() string {
	return ptime.Month(c.Month).String()
}

func (c Cycle) String() string {
	return fmt.Sprintf("%04d-%02d", c.Year, c.Month)
}

// Calendar resolves cycles in a fixed time zone. Month boundaries are local
// midnights, so the zone matters.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar anchored at loc, or at Iran time when loc is nil.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = ptime.Iran()
	}
	return Calendar{loc: loc}
}

// Location returns the zone month boundaries are computed in.
func (cal Calendar) Location() *time.Location {
	if cal.loc == nil {
		return ptime.Iran()
	}
	return cal.loc
}

// Range returns the half-open interval [start, end) covered by c, in UTC.
// An instant equal to end belongs to the next cycle. Passing an invalid
// cycle is a programming error and panics.
func (cal Calendar) Range(c Cycle) (start, end time.Time) {
	if !c.Valid() {
		panic(fmt.Sprintf("cycle: invalid cycle %d/%d", c.Year, c.Month))
	}
	return cal.firstInstant(c), cal.firstInstant(c.Next())
}

// At returns the cycle containing t.
func (cal Calendar) At(t time.Time) Cycle {
	pt := ptime.New(t.In(cal.Location()))
	return Cycle{Year: pt.Year(), Month: int(pt.Month())}
}

// DateString formats t as a Solar Hijri date, e.g. 1403/04/11.
func (cal Calendar) DateString(t time.Time) string {
	pt := ptime.New(t.In(cal.Location()))
	return fmt.Sprintf("%04d/%02d/%02d", pt.Year(), int(pt.Month()), pt.Day())
}

// Contains reports whether t falls inside c.
func (cal Calendar) Contains(c Cycle, t time.Time) bool {
	start, end := cal.Range(c)
	return !t.Before(start) && t.Before(end)
}

func (cal Calendar) firstInstant(c Cycle) time.Time {
	return ptime.Date(c.Year, ptime.Month(c.Month), 1, 0, 0, 0, 0, cal.Location()).Time().UTC()
}

// Resolve is Range for the default Iran-time calendar.
func Resolve(year, month int) (start, end time.Time) {
	return NewCalendar(nil).Range(Cycle{Year: year, Month: month})
}

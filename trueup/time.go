/*
time.go - Business dates and the dual temporal cutoff

PURPOSE:
  Commission calculations live on four independent temporal axes:
  event date (when a claim was paid), cohort-lock year (which UY a policy
  belongs to), actuarial snapshot date (as-of date of an IBNR estimate),
  and system write time (when a fact row landed in the store). This file
  defines the two types that keep the first and last from ever being
  conflated:

  - Date:   a day-granularity business date. Premium, claims, splits,
            schemes and LPT events are all effective-dated with this.
  - Cutoff: the pair (business as-of date, optional system write-time
            cutoff). Every accessor read is parameterized by a Cutoff.

REPLAY SEMANTICS:
  A Cutoff with SystemAsOf set reproduces "what the system knew then":
  facts written after that wall-clock instant are excluded even if their
  business dates fall before the as-of date. The two cutoffs are filtered
  independently - one never substitutes for the other.

SEE ALSO:
  - facts.go: Every read contract takes a Cutoff
  - store/sqlite: Applies both filters in SQL
*/
package trueup

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity business date
// =============================================================================

// Date is a calendar date in UTC with no time-of-day component.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t.UTC()}, nil
}

// DateOf truncates a time.Time to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{t: d.t.AddDate(n, 0, 0)} }

// DaysSince returns the number of whole days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.t.Sub(other.t).Hours() / 24)
}

func (d Date) Year() int       { return d.t.Year() }
func (d Date) IsZero() bool    { return d.t.IsZero() }
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	return d.t.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date json: %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// CUTOFF - Business as-of date plus optional system write-time cutoff
// =============================================================================

// Cutoff bounds what a read may observe. AsOf bounds business dates
// (txn_date, snapshot as_of_date, effective_from). SystemAsOf, when set,
// additionally excludes facts written to the store after that instant.
type Cutoff struct {
	AsOf       Date
	SystemAsOf *time.Time
}

// AsOf builds a Cutoff with only the business-date bound.
func AsOf(d Date) Cutoff {
	return Cutoff{AsOf: d}
}

// Replay returns a copy of the cutoff that also excludes facts written
// after t.
func (c Cutoff) Replay(t time.Time) Cutoff {
	u := t.UTC()
	c.SystemAsOf = &u
	return c
}

// IncludesBusinessDate reports whether a fact effective on d is visible.
func (c Cutoff) IncludesBusinessDate(d Date) bool {
	return d.BeforeOrEqual(c.AsOf)
}

// IncludesWrite reports whether a fact written at t is visible.
func (c Cutoff) IncludesWrite(t time.Time) bool {
	if c.SystemAsOf == nil {
		return true
	}
	return !t.After(*c.SystemAsOf)
}

// Includes applies both filters.
func (c Cutoff) Includes(businessDate Date, writtenAt time.Time) bool {
	return c.IncludesBusinessDate(businessDate) && c.IncludesWrite(writtenAt)
}

func (c Cutoff) String() string {
	if c.SystemAsOf != nil {
		return fmt.Sprintf("%s (system %s)", c.AsOf, c.SystemAsOf.Format(time.RFC3339))
	}
	return c.AsOf.String()
}

package calendar

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Period is a half-open range [From, To) used for billing periods and stays.
type Period struct {
	From time.Time
	To   time.Time
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.From.Format(time.DateOnly), p.To.Format(time.DateOnly))
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}

// Date truncates t to midnight UTC.
func Date(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Period {
	from := Date(t).AddDate(0, 0, 1-t.UTC().Day())
	return Period{From: from, To: from.AddDate(0, 1, 0)}
}

// DayOf returns the single-day period starting at t's date.
func DayOf(t time.Time) Period {
	from := Date(t)
	return Period{From: from, To: from.Add(day)}
}

// Clock abstracts the wall clock so callers can pin "now" in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c).UTC() }

// Provider answers "what is today / this month / this semester". A configured
// override pins the current semester regardless of the clock.
type Provider struct {
	clock    Clock
	override Semester
}

// NewProvider builds a Provider. An empty override means the semester is
// derived from the clock.
func NewProvider(clock Clock, override string) (*Provider, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	p := &Provider{clock: clock}
	if override != "" {
		sem, err := ParseSemester(override)
		if err != nil {
			return nil, fmt.Errorf("semester override: %w", err)
		}
		p.override = sem
	}
	return p, nil
}

func (p *Provider) Now() time.Time {
	return p.clock.Now().UTC()
}

func (p *Provider) Today() time.Time {
	return Date(p.Now())
}

func (p *Provider) CurrentMonth() Period {
	return MonthOf(p.Now())
}

func (p *Provider) CurrentSemester() Semester {
	if !p.override.IsZero() {
		return p.override
	}
	return SemesterOf(p.Now())
}

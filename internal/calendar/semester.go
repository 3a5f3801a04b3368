package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var semesterRe = regexp.MustCompile(`(?i)^\s*(\d{4})\s*[-_ ]\s*(spring|summer|fall)\s*$`)

// Term is the part of the academic year a semester covers.
type Term string

const (
	Spring Term = "spring"
	Summer Term = "summer"
	Fall   Term = "fall"
)

// Semester identifies an academic term. Its string form ("2025-fall") is the
// key stored on semester access records.
type Semester struct {
	Year int
	Term Term
}

func (s Semester) String() string {
	return fmt.Sprintf("%d-%s", s.Year, s.Term)
}

func (s Semester) IsZero() bool {
	return s.Year == 0 && s.Term == ""
}

// SemesterOf maps a date to its semester: January–May is spring,
// June–August summer and September–December fall.
func SemesterOf(t time.Time) Semester {
	t = t.UTC()
	switch m := t.Month(); {
	case m <= time.May:
		return Semester{Year: t.Year(), Term: Spring}
	case m <= time.August:
		return Semester{Year: t.Year(), Term: Summer}
	default:
		return Semester{Year: t.Year(), Term: Fall}
	}
}

// Period returns the semester's bounds as a half-open date range.
func (s Semester) Period() Period {
	var from, to time.Month
	switch s.Term {
	case Spring:
		from, to = time.January, time.June
	case Summer:
		from, to = time.June, time.September
	default:
		return Period{
			From: time.Date(s.Year, time.September, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(s.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return Period{
		From: time.Date(s.Year, from, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(s.Year, to, 1, 0, 0, 0, 0, time.UTC),
	}
}

// ParseSemester parses codes such as "2025-fall", "2026 Spring" or "2024_summer".
func ParseSemester(raw string) (Semester, error) {
	m := semesterRe.FindStringSubmatch(raw)
	if len(m) != 3 {
		return Semester{}, fmt.Errorf("unrecognised semester code %q", raw)
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return Semester{}, fmt.Errorf("invalid semester year in %q: %w", raw, err)
	}
	return Semester{Year: year, Term: Term(strings.ToLower(m[2]))}, nil
}

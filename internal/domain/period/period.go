// internal/domain/period/period.go
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPeriod = fmt.Errorf("invalid academic period")

const (
	TermFirst  = "1"
	TermSecond = "2"
)

// Period is an academic year + term pair used to filter external records.
type Period struct {
	year string
	term string
}

// TermRule decides which term a calendar date falls into.
type TermRule struct {
	SecondTermStartMonth time.Month
}

// DefaultTermRule splits the year in halves: January-June is term 1.
func DefaultTermRule() TermRule {
	return TermRule{SecondTermStartMonth: time.July}
}

// FromParameters builds a Period from explicit values.
func FromParameters(year, term string) (Period, error) {
	year = strings.TrimSpace(year)
	term = strings.TrimSpace(term)
	if year == "" || term == "" {
		return Period{}, fmt.Errorf("%w: year=%q term=%q", ErrInvalidPeriod, year, term)
	}
	return Period{year: year, term: term}, nil
}

// Current derives the Period that contains now.
func Current(now time.Time, rule TermRule) Period {
	boundary := rule.SecondTermStartMonth
	if boundary < time.January || boundary > time.December {
		boundary = DefaultTermRule().SecondTermStartMonth
	}
	term := TermFirst
	if now.Month() >= boundary {
		term = TermSecond
	}
	return Period{year: strconv.Itoa(now.Year()), term: term}
}

func (p Period) Year() string { return p.year }
func (p Period) Term() string { return p.term }

func (p Period) IsZero() bool { return p.year == "" && p.term == "" }

func (p Period) String() string {
	return p.year + "." + p.term
}

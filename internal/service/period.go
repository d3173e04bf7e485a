package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/tallybook/internal/database/repository"
)

// Period is an inclusive date range; a nil bound is open.
type Period struct {
	From *time.Time
	To   *time.Time
}

func (p Period) String() string {
	bound := func(t *time.Time) string {
		if t == nil {
			return ":"
		}
		return t.Format(repository.DateLayout)
	}
	return bound(p.From) + " - " + bound(p.To)
}

var yearMonthDash = regexp.MustCompile(`^\d{4}-\d{1,2}$`)

// ParsePeriod reads the period shorthands accepted on the command line:
//
//	2023          the whole year
//	2023/02       one month (2023-02 also works)
//	02, february  that month of now's year
//	2021/02/15    one day
//	A-B           from the start of A to the end of B; ":" leaves a side open
//
// An empty string is the unbounded period.
func ParsePeriod(s string, now time.Time) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, nil
	}
	if yearMonthDash.MatchString(s) {
		s = strings.Replace(s, "-", "/", 1)
	}
	left, right, isRange := strings.Cut(s, "-")
	if !isRange {
		from, to, err := parsePeriodPoint(s, now)
		if err != nil {
			return Period{}, err
		}
		return Period{From: &from, To: &to}, nil
	}

	var p Period
	if left = strings.TrimSpace(left); left != "" && left != ":" {
		from, _, err := parsePeriodPoint(left, now)
		if err != nil {
			return Period{}, err
		}
		p.From = &from
	}
	if right = strings.TrimSpace(right); right != "" && right != ":" {
		_, to, err := parsePeriodPoint(right, now)
		if err != nil {
			return Period{}, err
		}
		p.To = &to
	}
	if p.From != nil && p.To != nil && p.From.After(*p.To) {
		return Period{}, validationf("period %q ends before it starts", s)
	}
	return p, nil
}

// parsePeriodPoint returns the first and last day covered by one shorthand.
func parsePeriodPoint(s string, now time.Time) (time.Time, time.Time, error) {
	parts := strings.Split(s, "/")
	num := func(i, lo, hi int) (int, bool) {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		return n, err == nil && n >= lo && n <= hi
	}
	switch len(parts) {
	case 3:
		y, okY := num(0, 1, 9999)
		m, okM := num(1, 1, 12)
		d, okD := num(2, 1, 31)
		if okY && okM && okD {
			day := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
			if day.Day() == d {
				return day, day, nil
			}
		}
	case 2:
		y, okY := num(0, 1, 9999)
		m, okM := num(1, 1, 12)
		if okY && okM {
			return monthBounds(y, time.Month(m))
		}
	case 1:
		p := strings.TrimSpace(parts[0])
		if len(p) == 4 {
			if y, ok := num(0, 1, 9999); ok {
				from := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
				return from, time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC), nil
			}
		}
		if m, ok := num(0, 1, 12); ok {
			return monthBounds(now.Year(), time.Month(m))
		}
		if m, ok := monthByName(p); ok {
			return monthBounds(now.Year(), m)
		}
	}
	return time.Time{}, time.Time{}, validationf("cannot parse period %q", s)
}

func monthBounds(year int, m time.Month) (time.Time, time.Time, error) {
	from := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	return from, monthEnd(from), nil
}

// monthEnd is the last day of t's month.
func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func monthByName(s string) (time.Month, bool) {
	s = fold(s)
	if len(s) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(fold(m.String()), s) {
			return m, true
		}
	}
	return 0, false
}

// ParseAmountRange reads "MIN-MAX" where either side may be ":" for open.
// The range is inclusive of MIN and exclusive of MAX.
func ParseAmountRange(s string) (min, max *float64, err error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return nil, nil, validationf("amount range %q must look like MIN-MAX", s)
	}
	side := func(v string) (*float64, error) {
		v = strings.TrimSpace(v)
		if v == "" || v == ":" {
			return nil, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, validationf("cannot parse amount %q", v)
		}
		f, _ := d.Float64()
		return &f, nil
	}
	if min, err = side(left); err != nil {
		return nil, nil, err
	}
	if max, err = side(right); err != nil {
		return nil, nil, err
	}
	if min != nil && max != nil && *min > *max {
		return nil, nil, validationf("amount range %q has min above max", s)
	}
	return min, max, nil
}

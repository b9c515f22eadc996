package interval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidStepUnit = errors.New("invalid step unit")

type Kind int

const (
	Months Kind = iota + 1
	Days
)

func (k Kind) String() string {
	switch k {
	case Months:
		return "M"
	case Days:
		return "D"
	default:
		return "?"
	}
}

// StepUnit is the calendar distance between two interval boundaries.
type StepUnit struct {
	Kind Kind
	N    int
}

func (s StepUnit) String() string {
	return fmt.Sprintf("%d%s", s.N, s.Kind)
}

func (s StepUnit) validate() error {
	if s.Kind != Months && s.Kind != Days {
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidStepUnit, s.Kind)
	}
	if s.N < 1 {
		return fmt.Errorf("%w: step must be at least 1, got %d", ErrInvalidStepUnit, s.N)
	}
	return nil
}

// ParseStep reads tokens such as "1M", "M", "15D". A missing magnitude means 1.
func ParseStep(token string) (StepUnit, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return StepUnit{}, fmt.Errorf("%w: empty token", ErrInvalidStepUnit)
	}

	var kind Kind
	switch token[len(token)-1] {
	case 'M':
		kind = Months
	case 'D':
		kind = Days
	default:
		return StepUnit{}, fmt.Errorf("%w: unrecognized suffix in %q (expected M or D)", ErrInvalidStepUnit, token)
	}

	n := 1
	if magnitude := token[:len(token)-1]; magnitude != "" {
		if strings.TrimLeft(magnitude, "0123456789") != "" {
			return StepUnit{}, fmt.Errorf("%w: bad magnitude in %q", ErrInvalidStepUnit, token)
		}
		var err error
		n, err = strconv.Atoi(magnitude)
		if err != nil {
			return StepUnit{}, fmt.Errorf("%w: bad magnitude in %q", ErrInvalidStepUnit, token)
		}
	}

	step := StepUnit{Kind: kind, N: n}
	if err := step.validate(); err != nil {
		return StepUnit{}, err
	}
	return step, nil
}

// Advance moves t forward by the step. Month steps keep the day of month when
// the target month has it and otherwise land on its last day.
func (s StepUnit) Advance(t time.Time) time.Time {
	if s.Kind == Days {
		return t.AddDate(0, 0, s.N)
	}
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(s.N), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

type Interval struct {
	From time.Time
	To   time.Time
}

func (i Interval) String() string {
	return i.From.Format(DateLayout) + "_" + i.To.Format(DateLayout)
}

// Partition splits [start, end) into contiguous intervals of one step each.
// The last interval is cut at end. start == end yields no intervals.
func Partition(start, end time.Time, step StepUnit) ([]Interval, error) {
	if err := step.validate(); err != nil {
		return nil, err
	}

	var intervals []Interval
	for cursor := start; cursor.Before(end); {
		next := step.Advance(cursor)
		to := next
		if to.After(end) {
			to = end
		}
		intervals = append(intervals, Interval{From: cursor, To: to})
		cursor = next
	}
	return intervals, nil
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both bounds to the UTC day.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return r, nil
}

func (r DateRange) Partition(step StepUnit) ([]Interval, error) {
	return Partition(r.Start, r.End, step)
}

// Day drops the time of day, keeping the calendar date as seen in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

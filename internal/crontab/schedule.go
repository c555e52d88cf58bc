package crontab

import (
	"iter"
	"strings"
	"time"
)

// MaxTime is the implicit end of the search performed by Schedule.Next.
var MaxTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// maxDayScans caps how many candidate dates may be rejected for falling on
// the wrong day of week before NextBefore gives up and returns its end.
const maxDayScans = 1 << 16

var secondZero = MustParseField(Second, "0")

type ParseOptions struct {
	// IncludingSeconds makes the expression carry a leading seconds field.
	IncludingSeconds bool
}

// Schedule is a parsed cron expression. It is immutable and safe for
// concurrent use.
type Schedule struct {
	seconds    *Field // nil when the expression has no seconds field
	minutes    *Field
	hours      *Field
	days       *Field
	months     *Field
	daysOfWeek *Field
}

// Parse parses a whitespace separated cron expression. It expects five
// fields, or six when opts.IncludingSeconds is set.
func Parse(expression string, opts ParseOptions) (*Schedule, error) {
	want := 5
	kinds := []FieldKind{Minute, Hour, Day, Month, DayOfWeek}
	if opts.IncludingSeconds {
		want = 6
		kinds = append([]FieldKind{Second}, kinds...)
	}

	components := strings.Fields(expression)
	if len(components) != want {
		return nil, &ExpressionError{
			Expression: expression,
			Want:       want,
			Got:        len(components),
		}
	}

	fields := make([]*Field, len(components))
	for i, component := range components {
		field, err := ParseField(kinds[i], component)
		if err != nil {
			return nil, err
		}
		fields[i] = field
	}

	s := &Schedule{}
	if opts.IncludingSeconds {
		s.seconds, fields = fields[0], fields[1:]
	}
	s.minutes = fields[0]
	s.hours = fields[1]
	s.days = fields[2]
	s.months = fields[3]
	s.daysOfWeek = fields[4]
	return s, nil
}

// MustParse is like Parse but panics if the expression cannot be parsed.
func MustParse(expression string, opts ParseOptions) *Schedule {
	s, err := Parse(expression, opts)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schedule) HasSeconds() bool {
	return s.seconds != nil
}

// Next returns the first occurrence strictly after base. It returns MaxTime
// if the schedule never fires again.
//
// The search works on the wall clock of base's location. Results are
// strictly after base only for locations without offset changes, such as
// UTC. In the hour repeated when clocks fall back, a later wall time may
// resolve to an earlier instant, so callers that need zone semantics
// should search a naive UTC wall clock and convert the results.
func (s *Schedule) Next(base time.Time) time.Time {
	return s.NextBefore(base, MaxTime)
}

// NextBefore returns the first occurrence strictly after base and strictly
// before end, or end itself when there is none. The same wall clock caveat
// as Next applies.
func (s *Schedule) NextBefore(base, end time.Time) time.Time {
	localEnd := end.In(base.Location())
	for range maxDayScans {
		next, ok := s.candidate(base, localEnd)
		if !ok {
			return end
		}
		if s.daysOfWeek.Contains(int(next.Weekday())) {
			return next
		}
		y, m, d := next.Date()
		base = time.Date(y, m, d, 23, 59, 59, 0, next.Location())
	}
	return end
}

// Occurrences yields every occurrence after base and before end in order.
// The sequence holds no state of its own and may be iterated many times.
func (s *Schedule) Occurrences(base, end time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for next := s.NextBefore(base, end); next.Before(end); next = s.NextBefore(next, end) {
			if !yield(next) {
				return
			}
		}
	}
}

// candidate resolves every field except day of week. It reports false when
// the earliest candidate is not before end.
func (s *Schedule) candidate(base, end time.Time) (time.Time, bool) {
	seconds := s.seconds
	if seconds == nil {
		seconds = secondZero
	}

	baseYear, baseMonthValue, baseDay := base.Date()
	baseHour, baseMinute, baseSecond := base.Clock()
	baseMonth := int(baseMonthValue)
	endYear, endMonthValue, endDay := end.Date()
	endMonth := int(endMonthValue)

	year, month, day := baseYear, baseMonth, baseDay
	hour, minute, second := baseHour, baseMinute, baseSecond+1

	second = seconds.Next(second)
	if second == none {
		second = seconds.First()
		minute++
	}

	minute = s.minutes.Next(minute)
	if minute == none {
		minute = s.minutes.First()
		hour++
	}

	hour = s.hours.Next(hour)
	if hour == none {
		minute = s.minutes.First()
		hour = s.hours.First()
		day++
	} else if hour > baseHour {
		minute = s.minutes.First()
	}

	day = s.days.Next(day)
	for {
		if day == none {
			second = seconds.First()
			minute = s.minutes.First()
			hour = s.hours.First()
			day = s.days.First()
			month++
		} else if day > baseDay {
			second = seconds.First()
			minute = s.minutes.First()
			hour = s.hours.First()
		}

		month = s.months.Next(month)
		if month == none {
			second = seconds.First()
			minute = s.minutes.First()
			hour = s.hours.First()
			day = s.days.First()
			month = s.months.First()
			year++
		} else if month > baseMonth {
			second = seconds.First()
			minute = s.minutes.First()
			hour = s.hours.First()
			day = s.days.First()
		}

		dateChanged := day != baseDay || month != baseMonth || year != baseYear
		if day <= 28 || !dateChanged || day <= daysIn(year, month) {
			break
		}
		// The day does not exist in this month, e.g. April 31st.
		if !dateBefore(year, month, day, endYear, endMonth, endDay) {
			return time.Time{}, false
		}
		day = none
	}

	next := time.Date(year, time.Month(month), day, hour, minute, second, 0, base.Location())
	if !next.Before(end) {
		return time.Time{}, false
	}
	return next, true
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dateBefore(year, month, day, otherYear, otherMonth, otherDay int) bool {
	if year != otherYear {
		return year < otherYear
	}
	if month != otherMonth {
		return month < otherMonth
	}
	return day < otherDay
}

// String returns the canonical numeric form of the expression.
func (s *Schedule) String() string {
	return s.format(true)
}

// Explain is like String but spells out month and day of week names.
func (s *Schedule) Explain() string {
	return s.format(false)
}

func (s *Schedule) format(noNames bool) string {
	parts := make([]string, 0, 6)
	if s.seconds != nil {
		parts = append(parts, s.seconds.Format(noNames))
	}
	for _, f := range []*Field{s.minutes, s.hours, s.days, s.months, s.daysOfWeek} {
		parts = append(parts, f.Format(noNames))
	}
	return strings.Join(parts, " ")
}

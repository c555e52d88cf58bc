package crontab

import (
	"fmt"
	"strings"
)

// FieldKind identifies one component of a cron expression.
type FieldKind int

const (
	Second FieldKind = iota
	Minute
	Hour
	Day
	Month
	DayOfWeek
)

type fieldSpec struct {
	kind     FieldKind
	min, max int
	names    []string
}

var fieldSpecs = [...]fieldSpec{
	Second: {kind: Second, min: 0, max: 59},
	Minute: {kind: Minute, min: 0, max: 59},
	Hour:   {kind: Hour, min: 0, max: 23},
	Day:    {kind: Day, min: 1, max: 31},
	Month: {kind: Month, min: 1, max: 12, names: []string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}},
	DayOfWeek: {kind: DayOfWeek, min: 0, max: 6, names: []string{
		"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
	}},
}

var kindNames = [...]string{
	Second:    "second",
	Minute:    "minute",
	Hour:      "hour",
	Day:       "day",
	Month:     "month",
	DayOfWeek: "day of week",
}

func (k FieldKind) Valid() bool {
	return k >= Second && k <= DayOfWeek
}

func (k FieldKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
	return kindNames[k]
}

// Bounds returns the inclusive range of values the kind accepts.
// It returns (0, -1) for an invalid kind.
func (k FieldKind) Bounds() (minimum, maximum int) {
	spec, err := lookupSpec(k)
	if err != nil {
		return 0, -1
	}
	return spec.min, spec.max
}

// Names returns the symbolic value names of the kind, or nil when the kind
// only accepts numbers. The returned slice must not be modified.
func (k FieldKind) Names() []string {
	spec, err := lookupSpec(k)
	if err != nil {
		return nil
	}
	return spec.names
}

func lookupSpec(kind FieldKind) (*fieldSpec, error) {
	if !kind.Valid() {
		valid := make([]string, 0, len(kindNames))
		for _, name := range kindNames {
			valid = append(valid, name)
		}
		return nil, fmt.Errorf("%w %d, valid kinds are: %s", ErrInvalidKind, int(kind), strings.Join(valid, ", "))
	}
	return &fieldSpecs[kind], nil
}

func (s *fieldSpec) size() int {
	return s.max - s.min + 1
}

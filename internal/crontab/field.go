package crontab

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

const none = -1

// bitset64 holds one bit per field value, indexed by value minus the
// field's minimum. The widest field (seconds) needs 60 bits.
type bitset64 uint64

func (b bitset64) has(index int) bool {
	return index >= 0 && index < 64 && b&(1<<uint(index)) != 0
}

func (b *bitset64) set(index int) {
	*b |= 1 << uint(index)
}

// Field is one parsed component of a cron expression. A Field is only
// mutated while it is being parsed; afterwards it is read-only.
type Field struct {
	spec   *fieldSpec
	bits   bitset64
	minSet int
	maxSet int
}

func newField(spec *fieldSpec) *Field {
	return &Field{
		spec:   spec,
		minSet: math.MaxInt,
		maxSet: none,
	}
}

func (f *Field) Kind() FieldKind {
	return f.spec.kind
}

// First returns the smallest value the field allows, or -1 if it allows none.
func (f *Field) First() int {
	if f.minSet == math.MaxInt {
		return none
	}
	return f.minSet
}

// Next returns the smallest allowed value that is at least start, or -1.
func (f *Field) Next(start int) int {
	if start < f.minSet {
		return f.First()
	}
	index := start - f.spec.min
	last := f.maxSet - f.spec.min
	if index > last {
		return none
	}
	rest := uint64(f.bits) >> uint(index)
	if rest == 0 {
		return none
	}
	return f.spec.min + index + bits.TrailingZeros64(rest)
}

// Contains reports whether value is allowed by the field.
func (f *Field) Contains(value int) bool {
	return f.bits.has(value - f.spec.min)
}

// accumulate adds the values start..end, stepping by interval. A start and
// end of -1 select the whole range of the field.
func (f *Field) accumulate(start, end, interval int) error {
	spec := f.spec

	if start == end {
		if start < 0 {
			if interval <= 1 {
				f.minSet = spec.min
				f.maxSet = spec.max
				f.bits = bitset64(1<<uint(spec.size())) - 1
				return nil
			}
			start, end = spec.min, spec.max
		} else if err := f.checkBounds(start); err != nil {
			return err
		}
	} else {
		if start > end {
			start, end = end, start
		}
		if start < 0 {
			start = spec.min
		} else if err := f.checkBounds(start); err != nil {
			return err
		}
		if end < 0 {
			end = spec.max
		} else if err := f.checkBounds(end); err != nil {
			return err
		}
	}

	if interval < 1 {
		interval = 1
	}

	i := start - spec.min
	for ; i <= end-spec.min; i += interval {
		f.bits.set(i)
	}

	if f.minSet > start {
		f.minSet = start
	}
	// i overshot the last index set by exactly one interval.
	if last := i + spec.min - interval; f.maxSet < last {
		f.maxSet = last
	}
	return nil
}

func (f *Field) checkBounds(value int) error {
	spec := f.spec
	if value >= spec.min && value <= spec.max {
		return nil
	}
	relation := "lower than the minimum"
	if value > spec.max {
		relation = "higher than the maximum"
	}
	return &FieldError{
		Kind: spec.kind,
		Text: strconv.Itoa(value),
		Reason: fmt.Sprintf(
			"%d is %s allowable value for the %s field, value must be between %d and %d (all inclusive)",
			value, relation, spec.kind, spec.min, spec.max,
		),
		Err: ErrOutOfRange,
	}
}

// Format renders the field back to text. Consecutive values collapse into
// ranges and a field that allows every value renders as "*". Month and
// day-of-week values use their names unless noNames is set.
func (f *Field) Format(noNames bool) string {
	size := f.spec.size()
	var sb strings.Builder
	buf := make([]byte, 0, 8)

	for i := 0; i < size; {
		if !f.bits.has(i) {
			i++
			continue
		}
		first := i
		for i < size && f.bits.has(i) {
			i++
		}
		last := i - 1

		if first == 0 && last == size-1 {
			return "*"
		}

		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		buf = f.appendValue(buf[:0], first, noNames)
		if last > first {
			buf = append(buf, '-')
			buf = f.appendValue(buf, last, noNames)
		}
		sb.Write(buf)
	}
	return sb.String()
}

func (f *Field) String() string {
	return f.Format(false)
}

func (f *Field) appendValue(dst []byte, index int, noNames bool) []byte {
	if !noNames && f.spec.names != nil {
		return append(dst, f.spec.names[index]...)
	}
	return appendNumber(dst, f.spec.min+index)
}

// appendNumber writes one- and two-digit values without going through
// strconv; every cron field value is below 100.
func appendNumber(dst []byte, value int) []byte {
	switch {
	case value >= 0 && value < 10:
		return append(dst, byte('0'+value))
	case value >= 10 && value < 100:
		return append(dst, byte('0'+value/10), byte('0'+value%10))
	default:
		return strconv.AppendInt(dst, int64(value), 10)
	}
}

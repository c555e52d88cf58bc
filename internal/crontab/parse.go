package crontab

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseField parses the text of a single field of the given kind.
func ParseField(kind FieldKind, text string) (*Field, error) {
	spec, err := lookupSpec(kind)
	if err != nil {
		return nil, err
	}

	field := newField(spec)
	if err := field.parse(text); err != nil {
		var fieldErr *FieldError
		if errors.As(err, &fieldErr) {
			fieldErr.Text = text
		}
		return nil, err
	}
	return field, nil
}

// MustParseField is like ParseField but panics if the text cannot be parsed.
func MustParseField(kind FieldKind, text string) *Field {
	field, err := ParseField(kind, text)
	if err != nil {
		panic(err)
	}
	return field
}

func (f *Field) parse(text string) error {
	if text == "" {
		return f.fail(ErrEmptyField, "a field value cannot be empty")
	}

	if strings.IndexByte(text, ',') > 0 {
		for _, item := range strings.Split(text, ",") {
			if err := f.parseItem(item); err != nil {
				return err
			}
		}
		return nil
	}
	return f.parseItem(text)
}

// parseItem handles one of *, */N, V, V/N, A-B and A-B/N.
func (f *Field) parseItem(item string) error {
	if item == "" {
		return f.fail(ErrEmptyField, "a list item cannot be empty")
	}

	interval := 1
	if slash := strings.IndexByte(item, '/'); slash > 0 {
		step, err := strconv.Atoi(item[slash+1:])
		if err != nil {
			return f.fail(ErrMalformed, fmt.Sprintf("%q is not a valid step", item[slash+1:]))
		}
		interval = step
		item = item[:slash]
	}

	if item == "*" {
		return f.accumulate(none, none, interval)
	}

	if dash := strings.IndexByte(item, '-'); dash > 0 {
		first, err := f.parseValue(item[:dash])
		if err != nil {
			return err
		}
		last, err := f.parseValue(item[dash+1:])
		if err != nil {
			return err
		}
		return f.accumulate(first, last, interval)
	}

	value, err := f.parseValue(item)
	if err != nil {
		return err
	}
	if interval == 1 {
		return f.accumulate(value, value, 1)
	}
	return f.accumulate(value, f.spec.max, interval)
}

func (f *Field) parseValue(token string) (int, error) {
	spec := f.spec
	if token == "" {
		return 0, f.fail(ErrMalformed, "missing value")
	}

	if token[0] >= '0' && token[0] <= '9' {
		value, err := strconv.Atoi(token)
		if err != nil {
			return 0, f.fail(ErrMalformed, fmt.Sprintf("%q is not a valid number", token))
		}
		return value, nil
	}

	if spec.names == nil {
		return 0, f.fail(ErrMalformed, fmt.Sprintf(
			"%q is not a valid %s value, it must be a number between %d and %d (all inclusive)",
			token, spec.kind, spec.min, spec.max,
		))
	}

	lower := strings.ToLower(token)
	for i, name := range spec.names {
		if strings.HasPrefix(strings.ToLower(name), lower) {
			return spec.min + i, nil
		}
	}
	return 0, f.fail(ErrUnknownName, fmt.Sprintf(
		"%q is not a known value name, use one of: %s",
		token, strings.Join(spec.names, ", "),
	))
}

func (f *Field) fail(sentinel error, reason string) error {
	return &FieldError{
		Kind:   f.spec.kind,
		Reason: reason,
		Err:    sentinel,
	}
}

package generator

import (
	"github.com/google/uuid"
)

// Generator produces a new value of type T on each call to Next.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces random UUIDv4 strings.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// UUIDV7Generator produces time-ordered UUIDv7 strings. Recurring job IDs
// use it so that keys sort by creation time in the bolt store.
type UUIDV7Generator struct{}

func (g *UUIDV7Generator) Next() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var (
	_ Generator[string] = &UUIDV4Generator{}
	_ Generator[string] = &UUIDV7Generator{}
)

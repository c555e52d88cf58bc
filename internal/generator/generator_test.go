package generator_test

import (
	"regexp"
	"slices"
	"sync"
	"testing"

	"github.com/glizzus/recurring/internal/generator"
)

func TestUUIDGeneratorsConcurrent(t *testing.T) {
	table := []struct {
		name    string
		gen     generator.Generator[string]
		pattern *regexp.Regexp
	}{
		{
			name:    "v4",
			gen:     &generator.UUIDV4Generator{},
			pattern: regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`),
		},
		{
			name:    "v7",
			gen:     &generator.UUIDV7Generator{},
			pattern: regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`),
		},
	}

	for _, tc := range table {
		t.Run(tc.name, func(t *testing.T) {
			var mu sync.Mutex
			seen := make(map[string]struct{})

			const total = 20000
			const concurrency = 10

			var wg sync.WaitGroup
			wg.Add(concurrency)
			for range concurrency {
				go func() {
					defer wg.Done()
					for range total / concurrency {
						id, err := tc.gen.Next()
						if err != nil {
							t.Error("expected no error, got:", err)
							return
						}
						if !tc.pattern.MatchString(id) {
							t.Errorf("expected valid UUID format, got %s", id)
							return
						}
						mu.Lock()
						_, dup := seen[id]
						seen[id] = struct{}{}
						mu.Unlock()
						if dup {
							t.Errorf("expected a unique ID, got duplicate: %s", id)
							return
						}
					}
				}()
			}
			wg.Wait()
		})
	}
}

func TestUUIDV7GeneratorIsSorted(t *testing.T) {
	gen := &generator.UUIDV7Generator{}
	ids := make([]string, 1000)
	for i := range ids {
		id, err := gen.Next()
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
	}
	if !slices.IsSorted(ids) {
		t.Error("UUIDv7 values generated in sequence are not sorted")
	}
}

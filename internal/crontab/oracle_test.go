package crontab_test

import (
	"testing"
	"time"

	"github.com/glizzus/recurring/internal/crontab"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/cronexpr"
	"github.com/robfig/cron/v3"
)

// The expressions below restrict at most one of day of month and day of
// week, where every implementation agrees on the meaning.

func TestOccurrencesAgreeWithCronexpr(t *testing.T) {
	expressions := []string{
		"*/5 * * * *",
		"0 0 31 * *",
		"15 10 29 2 *",
		"0 0 15,31 * *",
		"30 2 * 1-6/2 *",
		"0 */3 1,15 * *",
		"0 0 1 jan,jul *",
		"0 9 * * 1-5",
		"45 23 * * sun",
	}
	base := at(2015, 2, 7, 9, 5, 32)
	const n = 25

	for _, expression := range expressions {
		t.Run(expression, func(t *testing.T) {
			// cronexpr stops searching after 2099 and returns fewer results,
			// so compare only as many occurrences as it produced.
			want := cronexpr.MustParse(expression).NextN(base, n)
			if len(want) == 0 {
				t.Fatalf("cronexpr produced no occurrences for %q", expression)
			}

			var got []time.Time
			for occurrence := range mustParse(t, expression, false).Occurrences(base, crontab.MaxTime) {
				got = append(got, occurrence)
				if len(got) == len(want) {
					break
				}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("occurrences mismatch (-cronexpr +crontab):\n%s", diff)
			}
		})
	}
}

func TestNextAgreesWithRobfigCron(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	expressions := []string{
		"*/10 * * * * *",
		"0 30 9 1 * *",
		"15,45 0 12 * 3 *",
		"0 0 0 29 2 *",
		"5-10 * * * * 6",
		"0 0 */4 * * 1,3,5",
	}
	base := at(2015, 2, 7, 9, 5, 32)

	for _, expression := range expressions {
		t.Run(expression, func(t *testing.T) {
			oracle, err := parser.Parse(expression)
			if err != nil {
				t.Fatalf("cron.Parse(%q): %v", expression, err)
			}
			s := mustParse(t, expression, true)

			// robfig gives up after five years without a match and returns
			// the zero time.
			want, got := base, base
			compared := 0
			for range 40 {
				want = oracle.Next(want)
				if want.IsZero() {
					break
				}
				got = s.Next(got)
				if !got.Equal(want) {
					t.Fatalf("Next() = %v, want %v", got, want)
				}
				compared++
			}
			if compared == 0 {
				t.Fatalf("cron produced no occurrences for %q", expression)
			}
		})
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/glizzus/recurring/internal/schedule"
	"github.com/urfave/cli/v2"
)

var nextCommand = &cli.Command{
	Name:      "next",
	Usage:     "Print the next run times of a cron expression",
	ArgsUsage: "<expression>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 5},
		&cli.StringFlag{
			Name:    "tz",
			Usage:   "IANA time zone the expression is read in",
			Value:   "UTC",
			EnvVars: []string{"SCHEDULER_DEFAULT_TIME_ZONE"},
		},
		&cli.TimestampFlag{
			Name:   "after",
			Usage:  "start searching after this RFC 3339 time instead of now",
			Layout: time.RFC3339,
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one expression, quote it if it contains spaces", 2)
		}
		loc, err := time.LoadLocation(c.String("tz"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid time zone: %v", err), 2)
		}
		after := time.Now()
		if t := c.Timestamp("after"); t != nil {
			after = *t
		}

		runs, err := schedule.NextRunTimesIn(c.Args().First(), loc, after, c.Int("count"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if len(runs) == 0 {
			fmt.Fprintln(c.App.Writer, "never runs again")
		}
		for _, run := range runs {
			fmt.Fprintln(c.App.Writer, run.In(loc).Format(time.RFC3339))
		}
		return nil
	},
}

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check cron expressions, exiting non-zero if any is invalid",
	ArgsUsage: "<expression>...",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("expected at least one expression", 2)
		}
		invalid := 0
		for _, expression := range c.Args().Slice() {
			if err := schedule.ValidateCron(expression); err != nil {
				fmt.Fprintf(c.App.Writer, "invalid\t%s\t%v\n", expression, err)
				invalid++
				continue
			}
			fmt.Fprintf(c.App.Writer, "ok\t%s\n", expression)
		}
		if invalid > 0 {
			return cli.Exit(fmt.Sprintf("%d of %d expressions are invalid", invalid, c.NArg()), 1)
		}
		return nil
	},
}

var explainCommand = &cli.Command{
	Name:      "explain",
	Usage:     "Print the canonical form of an expression with month and weekday names",
	ArgsUsage: "<expression>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one expression", 2)
		}
		explained, err := schedule.Explain(c.Args().First())
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		fmt.Fprintln(c.App.Writer, explained)
		return nil
	},
}

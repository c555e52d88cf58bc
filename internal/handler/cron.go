package handler

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/recurring/internal/presenters"
	"github.com/glizzus/recurring/internal/schedule"
)

const defaultNextCount = 5

// CronRequest is the input of /cron next and /cron explain.
type CronRequest struct {
	Expression string
	Count      int
	Location   *time.Location
}

func CommandToCronRequest(options map[string]*discordgo.ApplicationCommandInteractionDataOption) (*CronRequest, error) {
	req := &CronRequest{Count: defaultNextCount, Location: time.UTC}

	expression, ok := options["expression"]
	if !ok || expression.StringValue() == "" {
		return nil, &UserError{Message: "An expression is required."}
	}
	req.Expression = expression.StringValue()

	if count, ok := options["count"]; ok {
		req.Count = int(count.IntValue())
		if req.Count < 1 || req.Count > maxNextCount {
			return nil, &UserError{Message: "Count must be between 1 and 10."}
		}
	}

	if zone, ok := options["timezone"]; ok && zone.StringValue() != "" {
		loc, err := time.LoadLocation(zone.StringValue())
		if err != nil {
			return nil, &UserError{Message: "Unknown time zone " + zone.StringValue() + "."}
		}
		req.Location = loc
	}
	return req, nil
}

func cronNextFlow(now func() time.Time) *Flow {
	return &Flow{
		ID: "cron_next",
		Root: &Node{
			ID:      "cron_next",
			Matcher: subcommandMatcher("cron", "next"),
			Handler: func(s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
				req, err := CommandToCronRequest(subcommandOptions(i))
				if err != nil {
					return err
				}
				explained, err := schedule.Explain(req.Expression)
				if err != nil {
					return err
				}
				upcoming, err := schedule.NextRunTimesIn(req.Expression, req.Location, now(), req.Count)
				if err != nil {
					return err
				}
				return s.InteractionRespond(i.Interaction, presenters.NextRunsResponse(req.Expression, explained, upcoming))
			},
		},
	}
}

var CronExplainFlow = &Flow{
	ID: "cron_explain",
	Root: &Node{
		ID:      "cron_explain",
		Matcher: subcommandMatcher("cron", "explain"),
		Handler: func(s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
			req, err := CommandToCronRequest(subcommandOptions(i))
			if err != nil {
				return err
			}
			explained, err := schedule.Explain(req.Expression)
			if err != nil {
				return err
			}
			return s.InteractionRespond(i.Interaction, presenters.ExplainResponse(req.Expression, explained))
		},
	},
}

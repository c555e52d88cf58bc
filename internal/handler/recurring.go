package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/recurring/internal/presenters"
	"github.com/glizzus/recurring/internal/repository"
	"github.com/glizzus/recurring/internal/schedule"
)

const stateSelectedJob = "job"

// upcomingShown is how many runs the job details list.
const upcomingShown = 3

func recurringListFlow(store repository.RecurringJobStore, now func() time.Time) *Flow {
	deleteNode := &Node{
		ID:      "recurring_delete",
		Matcher: componentMatcher(presenters.ComponentIDJobDelete),
		Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
			job, ok := ctx.State[stateSelectedJob].(repository.RecurringJob)
			if !ok {
				return fmt.Errorf("flow %s has no selected job", ctx.InstanceID)
			}
			err := store.Delete(context.Background(), job.ID)
			if errors.Is(err, repository.ErrJobNotFound) {
				return &UserError{Message: fmt.Sprintf("**%s** was already deleted.", job.Name)}
			}
			if err != nil {
				return fmt.Errorf("failed to delete recurring job %s: %w", job.ID, err)
			}
			return s.InteractionRespond(i.Interaction, presenters.JobDeletedResponse(job.Name))
		},
	}

	selectNode := &Node{
		ID:      "recurring_select",
		Matcher: componentMatcher(presenters.ComponentIDJobSelect),
		Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
			values := i.MessageComponentData().Values
			if len(values) != 1 {
				return fmt.Errorf("expected one selected job, got %d", len(values))
			}
			job, err := store.Get(context.Background(), values[0])
			if errors.Is(err, repository.ErrJobNotFound) {
				return &UserError{Message: "That recurring job no longer exists."}
			}
			if err != nil {
				return fmt.Errorf("failed to get recurring job %s: %w", values[0], err)
			}
			ctx.State[stateSelectedJob] = job

			loc, err := job.Location()
			if err != nil {
				return err
			}
			explained, err := schedule.Explain(job.Cron)
			if err != nil {
				return err
			}
			upcoming, err := schedule.NextRunTimesIn(job.Cron, loc, now(), upcomingShown)
			if err != nil {
				return err
			}
			return s.InteractionRespond(i.Interaction, presenters.JobDetailsResponse(job, explained, upcoming, ctx.InstanceID))
		},
		Next: []*Node{deleteNode},
	}

	return &Flow{
		ID: "recurring_list",
		Root: &Node{
			ID:      "recurring_list",
			Matcher: subcommandMatcher("recurring", "list"),
			Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
				jobs, err := store.List(context.Background())
				if err != nil {
					return fmt.Errorf("failed to list recurring jobs: %w", err)
				}
				return s.InteractionRespond(i.Interaction, presenters.BuildJobListResponse(jobs, ctx.InstanceID))
			},
			Next: []*Node{selectNode},
		},
	}
}

package presenters

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/recurring/internal/repository"
)

const (
	ComponentIDJobSelect = "recurring_select"
	ComponentIDJobDelete = "recurring_delete"
)

// maxSelectOptions is the most options Discord accepts in one select menu.
const maxSelectOptions = 25

var noJobsFoundResponse = &discordgo.InteractionResponse{
	Type: discordgo.InteractionResponseChannelMessageWithSource,
	Data: &discordgo.InteractionResponseData{
		Content: "No recurring jobs found",
	},
}

var jobSelectMinValues = 1

func jobToSelectMenuOption(job repository.RecurringJob) discordgo.SelectMenuOption {
	return discordgo.SelectMenuOption{
		Label:       job.Name,
		Value:       job.ID,
		Description: job.Cron,
	}
}

// BuildJobListResponse lists jobs in a select menu bound to the given flow
// instance.
func BuildJobListResponse(jobs []repository.RecurringJob, instanceID string) *discordgo.InteractionResponse {
	if len(jobs) == 0 {
		return noJobsFoundResponse
	}

	content := "**Recurring Jobs** _(select for more details)_"
	if len(jobs) > maxSelectOptions {
		content = fmt.Sprintf("**Recurring Jobs** _(showing %d of %d)_", maxSelectOptions, len(jobs))
		jobs = jobs[:maxSelectOptions]
	}

	options := make([]discordgo.SelectMenuOption, 0, len(jobs))
	for _, job := range jobs {
		options = append(options, jobToSelectMenuOption(job))
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							CustomID:    ComponentIDJobSelect + ":" + instanceID,
							Placeholder: "Select a recurring job",
							MinValues:   &jobSelectMinValues,
							MaxValues:   1,
							Options:     options,
						},
					},
				},
			},
		},
	}
}

// JobDetailsResponse describes a job and its upcoming runs, with a button to
// delete it.
func JobDetailsResponse(job repository.RecurringJob, explained string, upcoming []time.Time, instanceID string) *discordgo.InteractionResponse {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", job.Name)
	fmt.Fprintf(&b, "Schedule: `%s` (%s)\n", job.Cron, explained)
	if job.TimeZone != "" {
		fmt.Fprintf(&b, "Time zone: %s\n", job.TimeZone)
	}
	if job.LastRunAt != nil {
		fmt.Fprintf(&b, "Last run: %s\n", discordTimestamp(*job.LastRunAt))
	}
	b.WriteString(upcomingList(upcoming))

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content: strings.TrimRight(b.String(), "\n"),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Delete",
							Style:    discordgo.DangerButton,
							CustomID: ComponentIDJobDelete + ":" + instanceID,
						},
					},
				},
			},
		},
	}
}

func JobDeletedResponse(name string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    fmt.Sprintf("Deleted **%s**", name),
			Components: []discordgo.MessageComponent{},
		},
	}
}

// NextRunsResponse shows when an expression fires next.
func NextRunsResponse(expression, explained string, upcoming []time.Time) *discordgo.InteractionResponse {
	content := fmt.Sprintf("`%s` (%s)\n%s", expression, explained, upcomingList(upcoming))
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: strings.TrimRight(content, "\n"),
		},
	}
}

func ExplainResponse(expression, explained string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("`%s` means `%s`", expression, explained),
		},
	}
}

// ErrorResponse is only shown to the user who triggered the interaction.
func ErrorResponse(message string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

func upcomingList(upcoming []time.Time) string {
	if len(upcoming) == 0 {
		return "Never runs again\n"
	}
	var b strings.Builder
	b.WriteString("Next runs:\n")
	for _, t := range upcoming {
		fmt.Fprintf(&b, "- %s\n", discordTimestamp(t))
	}
	return b.String()
}

// discordTimestamp renders in each reader's own time zone.
func discordTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:F>", t.Unix())
}

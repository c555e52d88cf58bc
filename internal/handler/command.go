package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const maxNextCount = 10

var (
	nextCountMin     = 1.0
	expressionOption = &discordgo.ApplicationCommandOption{
		Name:        "expression",
		Type:        discordgo.ApplicationCommandOptionString,
		Description: "A cron expression with five or six fields, or a macro such as @daily.",
		Required:    true,
	}
)

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Check that the bot is alive",
	},
	{
		Name:        "cron",
		Description: "Work with cron expressions",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "next",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Show when an expression fires next",
				Options: []*discordgo.ApplicationCommandOption{
					expressionOption,
					{
						Name:        "count",
						Type:        discordgo.ApplicationCommandOptionInteger,
						Description: fmt.Sprintf("How many runs to show, up to %d.", maxNextCount),
						MinValue:    &nextCountMin,
						MaxValue:    maxNextCount,
					},
					{
						Name:        "timezone",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "An IANA time zone such as Europe/Berlin. Defaults to UTC.",
					},
				},
			},
			{
				Name:        "explain",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Spell out an expression with month and weekday names",
				Options:     []*discordgo.ApplicationCommandOption{expressionOption},
			},
		},
	},
	{
		Name:        "recurring",
		Description: "Manage recurring jobs",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "list",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "List all recurring jobs",
			},
		},
	},
}

func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}

func subcommandMatcher(command, subcommand string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionApplicationCommand {
			return false
		}
		data := i.ApplicationCommandData()
		return data.Name == command && len(data.Options) > 0 && data.Options[0].Name == subcommand
	}
}

// subcommandOptions indexes the options of the invoked subcommand by name.
func subcommandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return options
	}
	for _, option := range data.Options[0].Options {
		options[option.Name] = option
	}
	return options
}

package handler

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/recurring/internal/generator"
	"github.com/glizzus/recurring/internal/presenters"
	"github.com/glizzus/recurring/internal/repository"
)

// DiscordSession is the part of *discordgo.Session the handlers use.
type DiscordSession interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, wh *discordgo.WebhookEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ DiscordSession = (*discordgo.Session)(nil)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionCreateHandler = func(*discordgo.Session, *discordgo.InteractionCreate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("Bot is ready", "username", r.User.Username, "userID", r.User.ID)
}

type InteractionHandler func(DiscordSession, *discordgo.InteractionCreate)

func (h InteractionHandler) ForSession() InteractionCreateHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		h(s, i)
	}
}

const internalErrorMessage = "Something went wrong, try again later."

// NewInteractionHandler routes slash commands and components to their
// flows. The recurring commands are only served when store is set. A nil
// clock means time.Now.
func NewInteractionHandler(
	store repository.RecurringJobStore,
	now func() time.Time,
	idGenerator generator.Generator[string],
) InteractionHandler {
	if now == nil {
		now = time.Now
	}

	fm := NewFlowManager(idGenerator, now)
	fm.RegisterFlow(PingFlow)
	fm.RegisterFlow(cronNextFlow(now))
	fm.RegisterFlow(CronExplainFlow)
	if store != nil {
		fm.RegisterFlow(recurringListFlow(store, now))
	}

	return func(s DiscordSession, i *discordgo.InteractionCreate) {
		err := fm.Router(s, i)
		if err == nil {
			return
		}

		message, ok := userMessage(err)
		if !ok {
			slog.Error("Failed to handle interaction", "interactionID", i.ID, "error", err)
			message = internalErrorMessage
		}
		if err := s.InteractionRespond(i.Interaction, presenters.ErrorResponse(message)); err != nil {
			slog.Warn("Failed to report interaction error", "interactionID", i.ID, "error", err)
		}
	}
}

type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionCreateHandler
}

func NewSession(token string, handlers Handlers) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	s.AddHandler(handlers.Ready)
	s.AddHandler(handlers.InteractionCreate)

	return s, nil
}

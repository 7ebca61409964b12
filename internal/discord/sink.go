package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"server-warden/pkg/cmdkit"
)

// sink renders outcomes into channel messages. Resolution misses and silent
// successes send nothing.
type sink struct {
	dg  *discordgo.Session
	log zerolog.Logger
}

func (s *sink) Send(_ context.Context, msg *cmdkit.Message, out *cmdkit.Outcome) {
	text := renderOutcome(out)
	if text == "" {
		return
	}
	if _, err := s.dg.ChannelMessageSendReply(msg.ChannelID, text, &discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}); err != nil {
		s.log.Warn().Err(err).Str("channel", msg.ChannelID).Msg("failed to send reply")
	}
}

func renderOutcome(out *cmdkit.Outcome) string {
	var text string
	switch out.Kind {
	case cmdkit.OutcomeNone:
		return ""
	case cmdkit.OutcomeSuccess:
		text = out.Reply
	case cmdkit.OutcomeWrongSource:
		text = "That command cannot be used here."
	case cmdkit.OutcomeNotOwner:
		text = "Only the bot owner can use that command."
	case cmdkit.OutcomeMissingUserPerms:
		text = "You are missing the required permissions"
		if out.Perms != 0 {
			text += ": " + FormatPermissions(out.Perms)
		}
		text += "."
	case cmdkit.OutcomeMissingBotPerms:
		text = "I am missing the required permissions"
		if out.Perms != 0 {
			text += ": " + FormatPermissions(out.Perms)
		}
		text += "."
	case cmdkit.OutcomeMissingBotAccess:
		text = "I no longer have access to do that."
	case cmdkit.OutcomeBusinessError, cmdkit.OutcomeIncorrectParams, cmdkit.OutcomeUnclearParams,
		cmdkit.OutcomeNotEnoughParams, cmdkit.OutcomeTooManyParams, cmdkit.OutcomeInvalidParamFormat:
		text = out.Reply
		if text == "" {
			text = "That didn't work."
		}
	case cmdkit.OutcomeInternalError:
		text = "Something went wrong. Try again later."
	}

	if out.ShowUsage && out.Match != nil {
		text += fmt.Sprintf("\nUsage: `%s`", out.Match.Registration.FormatUsage())
	}
	return text
}

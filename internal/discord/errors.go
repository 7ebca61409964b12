package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"

	"server-warden/pkg/cmdkit"
)

// classifyRESTError maps the two revoked-access REST error codes onto their
// dedicated outcomes. Everything else stays unexpected.
func classifyRESTError(err error) (cmdkit.OutcomeKind, bool) {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Message == nil {
		return 0, false
	}
	switch rest.Message.Code {
	case discordgo.ErrCodeMissingAccess:
		return cmdkit.OutcomeMissingBotAccess, true
	case discordgo.ErrCodeMissingPermissions:
		return cmdkit.OutcomeMissingBotPerms, true
	}
	return 0, false
}

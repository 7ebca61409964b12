package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"server-warden/pkg/cmdkit"
)

// PermissionNames maps the permission bits commands declare to display names
// for reply rendering.
var PermissionNames = map[int64]string{
	discordgo.PermissionKickMembers:        "Kick Members",
	discordgo.PermissionBanMembers:         "Ban Members",
	discordgo.PermissionAdministrator:      "Administrator",
	discordgo.PermissionManageChannels:     "Manage Channels",
	discordgo.PermissionManageServer:        "Manage Server",
	discordgo.PermissionViewChannel:        "View Channel",
	discordgo.PermissionSendMessages:       "Send Messages",
	discordgo.PermissionManageMessages:     "Manage Messages",
	discordgo.PermissionEmbedLinks:         "Embed Links",
	discordgo.PermissionAttachFiles:        "Attach Files",
	discordgo.PermissionReadMessageHistory: "Read Message History",
	discordgo.PermissionMentionEveryone:    "Mention Everyone",
	discordgo.PermissionManageThreads:      "Manage Threads",
	discordgo.PermissionManageRoles:        "Manage Roles",
	discordgo.PermissionManageWebhooks:     "Manage Webhooks",
	discordgo.PermissionModerateMembers:    "Moderate Members",
}

// FormatPermissions renders a permission bit set as a readable list.
func FormatPermissions(perms int64) string {
	var names []string
	for bit := int64(1); bit != 0 && bit <= perms; bit <<= 1 {
		if perms&bit == 0 {
			continue
		}
		if name, ok := PermissionNames[bit]; ok {
			names = append(names, name)
		} else {
			names = append(names, fmt.Sprintf("0x%x", bit))
		}
	}
	if len(names) == 0 {
		return "unknown"
	}
	return strings.Join(names, ", ")
}

// permissionChecker answers the dispatcher's gate questions from channel
// permission state. Administrators pass every check.
type permissionChecker struct {
	dg *discordgo.Session
}

func (c *permissionChecker) UserHas(_ context.Context, msg *cmdkit.Message, perms int64) (bool, error) {
	return c.has(msg.AuthorID, msg.ChannelID, perms)
}

func (c *permissionChecker) BotHas(_ context.Context, msg *cmdkit.Message, perms int64) (bool, error) {
	return c.has(c.dg.State.User.ID, msg.ChannelID, perms)
}

func (c *permissionChecker) has(userID, channelID string, perms int64) (bool, error) {
	actual, err := c.dg.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, fmt.Errorf("discord: fetch permissions for %s: %w", userID, err)
	}
	if actual&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	return actual&perms == perms, nil
}

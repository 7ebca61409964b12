// Package roles declares self-assignable role management: moderators curate
// the assignable set, members join or leave roles from it.
package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"server-warden/internal/settings"
	"server-warden/pkg/cmdkit"
)

// TypeRoles is the per-guild assignable role list document.
const TypeRoles settings.Type = "assignable_roles"

// RoleList is the set of role ids members may self-assign.
type RoleList struct {
	RoleIDs []string `json:"role_ids"`
}

// RoleGranter applies role membership changes on the transport. The console
// adapter uses a no-op implementation.
type RoleGranter interface {
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
}

// New declares the roles module.
func New(store *settings.Store, granter RoleGranter) cmdkit.Module {
	return cmdkit.Module{
		Name: "roles",
		Commands: []*cmdkit.Registration{
			{
				Usage:           cmdkit.Usage{Invoker: "role", Verbs: []string{"add"}},
				Description:     "Make a role self-assignable.",
				UserPermissions: discordgo.PermissionManageRoles,
				BotPermissions:  discordgo.PermissionManageRoles,
				Synchronous:     true,
				Params: []cmdkit.ParamSpec{
					{Name: "role", Type: cmdkit.TypeRole},
				},
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return add(store, inv)
				},
			},
			{
				Usage:           cmdkit.Usage{Invoker: "role", Verbs: []string{"remove"}},
				Aliases:         []cmdkit.Usage{{Invoker: "role", Verbs: []string{"rm"}}},
				Description:     "Remove a role from the self-assignable set.",
				UserPermissions: discordgo.PermissionManageRoles,
				BotPermissions:  discordgo.PermissionManageRoles,
				Synchronous:     true,
				Params: []cmdkit.ParamSpec{
					{Name: "role", Type: cmdkit.TypeRole},
				},
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return remove(store, inv)
				},
			},
			{
				Usage:       cmdkit.Usage{Invoker: "role", Verbs: []string{"list"}},
				Description: "List self-assignable roles.",
				Synchronous: true,
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return list(store, inv)
				},
			},
			{
				Usage:          cmdkit.Usage{Invoker: "iam"},
				Description:    "Join a self-assignable role.",
				BotPermissions: discordgo.PermissionManageRoles,
				Typing:         true,
				Params: []cmdkit.ParamSpec{
					{Name: "role", Type: cmdkit.TypeRole},
				},
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return membership(ctx, store, granter, inv, true)
				},
			},
			{
				Usage:          cmdkit.Usage{Invoker: "iamnot"},
				Description:    "Leave a self-assignable role.",
				BotPermissions: discordgo.PermissionManageRoles,
				Typing:         true,
				Params: []cmdkit.ParamSpec{
					{Name: "role", Type: cmdkit.TypeRole},
				},
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return membership(ctx, store, granter, inv, false)
				},
			},
		},
	}
}

func add(store *settings.Store, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
	roleID := mustRoleID(inv)
	added, err := settings.Modify(store, TypeRoles, inv.Message.GuildID, func(l *RoleList) bool {
		for _, id := range l.RoleIDs {
			if id == roleID {
				return false
			}
		}
		l.RoleIDs = append(l.RoleIDs, roleID)
		return true
	})
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, &cmdkit.IncorrectParamsError{Reason: "that role is already self-assignable"}
	}
	return cmdkit.ReplyText(fmt.Sprintf("<@&%s> is now self-assignable.", roleID)), nil
}

func remove(store *settings.Store, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
	roleID := mustRoleID(inv)
	removed, err := settings.Modify(store, TypeRoles, inv.Message.GuildID, func(l *RoleList) bool {
		for i, id := range l.RoleIDs {
			if id == roleID {
				l.RoleIDs = append(l.RoleIDs[:i], l.RoleIDs[i+1:]...)
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, &cmdkit.IncorrectParamsError{Reason: "that role is not self-assignable"}
	}
	return cmdkit.ReplyText(fmt.Sprintf("<@&%s> is no longer self-assignable.", roleID)), nil
}

func list(store *settings.Store, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
	doc, ok, err := settings.Read[RoleList](store, TypeRoles, inv.Message.GuildID, false)
	if err != nil {
		return nil, err
	}
	if !ok || len(doc.RoleIDs) == 0 {
		return cmdkit.ReplyText("No self-assignable roles configured."), nil
	}
	mentions := make([]string, len(doc.RoleIDs))
	for i, id := range doc.RoleIDs {
		mentions[i] = fmt.Sprintf("<@&%s>", id)
	}
	return cmdkit.ReplyText("Self-assignable roles: " + strings.Join(mentions, ", ")), nil
}

func membership(ctx context.Context, store *settings.Store, granter RoleGranter, inv *cmdkit.Invocation, join bool) (*cmdkit.Reply, error) {
	roleID := mustRoleID(inv)
	doc, ok, err := settings.Read[RoleList](store, TypeRoles, inv.Message.GuildID, false)
	if err != nil {
		return nil, err
	}
	assignable := false
	if ok {
		for _, id := range doc.RoleIDs {
			if id == roleID {
				assignable = true
				break
			}
		}
	}
	if !assignable {
		return nil, &cmdkit.IncorrectParamsError{Reason: "that role is not self-assignable", ShowUsage: false}
	}

	msg := inv.Message
	if join {
		if err := granter.GrantRole(ctx, msg.GuildID, msg.AuthorID, roleID); err != nil {
			return nil, err
		}
		return cmdkit.ReplyText(fmt.Sprintf("You now have <@&%s>.", roleID)), nil
	}
	if err := granter.RevokeRole(ctx, msg.GuildID, msg.AuthorID, roleID); err != nil {
		return nil, err
	}
	return cmdkit.ReplyText(fmt.Sprintf("Removed <@&%s> from you.", roleID)), nil
}

// mustRoleID reads the bound role parameter; the parser already validated it.
func mustRoleID(inv *cmdkit.Invocation) string {
	tok, _ := inv.Param("role")
	id, _ := tok.RoleID()
	return id
}

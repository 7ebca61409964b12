// Package core declares the bot's baseline commands: ping, echo, help, and
// per-guild prefix management.
package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"server-warden/internal/settings"
	"server-warden/internal/version"
	"server-warden/pkg/cmdkit"
)

// prefixPattern keeps guild prefixes short and free of whitespace.
var prefixPattern = regexp.MustCompile(`^\S{1,5}$`)

// New declares the core module. The registry pointer is read lazily by help,
// after Build has filled it.
func New(store *settings.Store, registry *cmdkit.Registry) cmdkit.Module {
	return cmdkit.Module{
		Name: "core",
		Commands: []*cmdkit.Registration{
			{
				Usage:       cmdkit.Usage{Invoker: "ping"},
				Description: "Check that the bot is alive.",
				AllowDirect: true,
				Synchronous: true,
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return cmdkit.ReplyText("Pong!"), nil
				},
			},
			{
				Usage:       cmdkit.Usage{Invoker: "echo"},
				Aliases:     []cmdkit.Usage{{Invoker: "say"}},
				Description: "Repeat the given text.",
				AllowDirect: true,
				Params: []cmdkit.ParamSpec{
					{Name: "text", Type: cmdkit.TypeString, Remainder: true},
				},
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					text, _ := inv.Param("text")
					return cmdkit.ReplyText(text.Raw), nil
				},
			},
			{
				Usage:       cmdkit.Usage{Invoker: "help"},
				Description: "List commands, or show one command's usage.",
				AllowDirect: true,
				Synchronous: true,
				Params: []cmdkit.ParamSpec{
					{Name: "command", Type: cmdkit.TypeString, Optional: true, Remainder: true},
				},
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return help(registry, inv)
				},
			},
			{
				Usage:       cmdkit.Usage{Invoker: "about"},
				Description: "Show bot name and version.",
				AllowDirect: true,
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return cmdkit.ReplyText(fmt.Sprintf("%s %s", version.AppName, version.Version)), nil
				},
			},
			{
				Usage:           cmdkit.Usage{Invoker: "prefix", Verbs: []string{"set"}},
				Description:     "Override the command prefix for this guild.",
				UserPermissions: discordgo.PermissionManageServer,
				Synchronous:     true,
				Params: []cmdkit.ParamSpec{
					{Name: "value", Type: cmdkit.TypeString, Pattern: prefixPattern},
				},
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					value, _ := inv.Param("value")
					if err := settings.SetCustomPrefix(store, inv.Message.GuildID, value.Raw); err != nil {
						return nil, err
					}
					return cmdkit.ReplyText(fmt.Sprintf("Prefix set to `%s`.", value.Raw)), nil
				},
			},
			{
				Usage:           cmdkit.Usage{Invoker: "prefix", Verbs: []string{"reset"}},
				Description:     "Restore the default command prefix for this guild.",
				UserPermissions: discordgo.PermissionManageServer,
				Synchronous:     true,
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					if err := settings.SetCustomPrefix(store, inv.Message.GuildID, ""); err != nil {
						return nil, err
					}
					return cmdkit.ReplyText("Prefix reset to the default."), nil
				},
			},
			{
				Usage:       cmdkit.Usage{Invoker: "history"},
				Description: "Show the guild's recent commands.",
				OwnerOnly:   true,
				Synchronous: true,
				Run: func(ctx context.Context, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
					return history(store, inv)
				},
			},
		},
	}
}

func help(registry *cmdkit.Registry, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
	if tok, ok := inv.Param("command"); ok {
		want := strings.ToLower(strings.TrimSpace(tok.Raw))
		for _, reg := range registry.All() {
			if reg.Usage.Path() == want {
				return cmdkit.ReplyText(fmt.Sprintf("`%s` — %s", reg.FormatUsage(), reg.Description)), nil
			}
		}
		return nil, &cmdkit.IncorrectParamsError{Reason: fmt.Sprintf("no command named %q", want)}
	}

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, reg := range registry.All() {
		fmt.Fprintf(&sb, "`%s` — %s\n", reg.FormatUsage(), reg.Description)
	}
	return cmdkit.ReplyText(sb.String()), nil
}

func history(store *settings.Store, inv *cmdkit.Invocation) (*cmdkit.Reply, error) {
	records, err := settings.FetchCommandHistory(store, inv.Message.GuildID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return cmdkit.ReplyText("No commands recorded yet."), nil
	}
	var sb strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&sb, "%s — %s by %s (%s)\n",
			rec.At.Format("2006-01-02 15:04"), rec.Command, rec.AuthorName, rec.Outcome)
	}
	return cmdkit.ReplyText(sb.String()), nil
}

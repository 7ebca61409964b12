// Package discord is the Discord transport adapter: it feeds message events
// into the dispatcher and renders outcomes back to channels.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"server-warden/internal/config"
	"server-warden/internal/settings"
	"server-warden/pkg/cmdkit"
)

// Bot owns the Discord session and the dispatcher wiring.
type Bot struct {
	cfg        *config.Config
	store      *settings.Store
	dg         *discordgo.Session
	dispatcher *cmdkit.Dispatcher
	log        zerolog.Logger

	runCtx context.Context
}

// NewBot builds the session, registry and dispatcher. The registry must
// already be built.
func NewBot(cfg *config.Config, store *settings.Store, registry *cmdkit.Registry, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	b := &Bot{cfg: cfg, store: store, dg: dg, log: log}

	dispatcher, err := cmdkit.NewDispatcher(cmdkit.DispatcherConfig{
		Registry:      registry,
		Prefixes:      cmdkit.NewPrefixResolver(cfg.Prefix, settings.NewPrefixes(store)),
		Sink:          &sink{dg: dg, log: log},
		Checker:       &permissionChecker{dg: dg},
		Typing:        &typingNotifier{dg: dg},
		Owners:        cfg.OwnerIDs,
		ClassifyError: classifyRESTError,
		OnExecuted:    b.recordHistory,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}
	b.dispatcher = dispatcher
	return b, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.runCtx = ctx
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onMessageCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

// RoleGranter returns the role membership adapter for the roles module.
func (b *Bot) RoleGranter() *roleGranter {
	return &roleGranter{dg: b.dg}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("discord session ready")
}

// onMessageCreate converts the gateway event and hands it to the dispatcher.
// discordgo invokes handlers on their own goroutines, so each message is an
// independent task.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	msg := &cmdkit.Message{
		ID:          m.ID,
		Text:        m.Content,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.Username,
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
		Attachments: len(m.Attachments),
		Timestamp:   m.Timestamp,
	}
	b.dispatcher.Handle(b.runCtx, msg)
}

// recordHistory appends executed guild commands to the settings store.
func (b *Bot) recordHistory(ctx context.Context, msg *cmdkit.Message, match *cmdkit.Match, out *cmdkit.Outcome) {
	if msg.GuildID == "" {
		return
	}
	rec := settings.CommandRecord{
		ChannelID:  msg.ChannelID,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Command:    match.Usage.Path(),
		Outcome:    out.Kind.String(),
		At:         msg.Timestamp,
	}
	if err := settings.AppendCommandRecord(b.store, msg.GuildID, rec); err != nil {
		b.log.Warn().Err(err).Str("guild", msg.GuildID).Msg("failed to record command history")
	}
}

// roleGranter applies role membership changes via the REST API.
type roleGranter struct {
	dg *discordgo.Session
}

func (g *roleGranter) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	return g.dg.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (g *roleGranter) RevokeRole(_ context.Context, guildID, userID, roleID string) error {
	return g.dg.GuildMemberRoleRemove(guildID, userID, roleID)
}

package settings

import "context"

// TypeGuild is the per-guild configuration document.
const TypeGuild Type = "guild_settings"

// GuildSettings is the per-guild configuration shared by core commands.
type GuildSettings struct {
	// CustomPrefix overrides the process-wide command prefix when set.
	CustomPrefix string `json:"custom_prefix,omitempty"`

	// DisabledModules lists module names whose commands this guild turned off.
	DisabledModules []string `json:"disabled_modules,omitempty"`
}

// Prefixes adapts the store to the dispatcher's prefix provider contract.
type Prefixes struct {
	store *Store
}

// NewPrefixes returns a prefix provider backed by the store.
func NewPrefixes(store *Store) *Prefixes {
	return &Prefixes{store: store}
}

// CustomPrefix returns the guild's override, or "" when none is set.
func (p *Prefixes) CustomPrefix(_ context.Context, guildID string) (string, error) {
	doc, ok, err := Read[GuildSettings](p.store, TypeGuild, guildID, false)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return doc.CustomPrefix, nil
}

// SetCustomPrefix stores a guild's prefix override; empty clears it.
func SetCustomPrefix(s *Store, guildID, prefix string) error {
	_, err := Modify(s, TypeGuild, guildID, func(g *GuildSettings) struct{} {
		g.CustomPrefix = prefix
		return struct{}{}
	})
	return err
}

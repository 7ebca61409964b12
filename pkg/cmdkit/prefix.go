package cmdkit

import "context"

// PrefixProvider looks up a guild's custom command prefix. An empty string
// means the guild has no override. Errors are not masked: a failing provider
// aborts resolution for that message and the dispatcher drops it.
type PrefixProvider interface {
	CustomPrefix(ctx context.Context, guildID string) (string, error)
}

// PrefixResolver determines the effective command prefix for a message's
// source context: the guild override when present, the default otherwise.
type PrefixResolver struct {
	def    string
	guilds PrefixProvider
}

// NewPrefixResolver returns a resolver with the given default prefix.
// The provider may be nil, in which case the default always applies.
func NewPrefixResolver(def string, guilds PrefixProvider) *PrefixResolver {
	return &PrefixResolver{def: def, guilds: guilds}
}

// Resolve returns the prefix to strip for the given guild context. Direct
// messages always use the default.
func (r *PrefixResolver) Resolve(ctx context.Context, guildID string) (string, error) {
	if guildID == "" || r.guilds == nil {
		return r.def, nil
	}
	custom, err := r.guilds.CustomPrefix(ctx, guildID)
	if err != nil {
		return "", err
	}
	if custom != "" {
		return custom, nil
	}
	return r.def, nil
}

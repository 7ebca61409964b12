// Package cmdkit provides a transport-agnostic command core: inbound text
// messages are resolved against a registry of prefixed commands, their
// parameters parsed into typed tokens, and the matched handler executed behind
// permission and source gates. How messages arrive and replies are delivered
// (Discord, console, HTTP) is defined by adapters that wrap this.
package cmdkit

import "time"

// Message is one inbound text event as handed over by a transport adapter.
// It is immutable once constructed and consumed exactly once by the Dispatcher.
type Message struct {
	// ID is the transport's message identifier, used as correlation id.
	ID string

	// Text is the full raw message text including the command prefix.
	Text string

	AuthorID   string
	AuthorName string
	ChannelID  string

	// GuildID is empty for direct messages.
	GuildID string

	// Attachments is the number of attached files, available to handlers
	// that accept uploads instead of text parameters.
	Attachments int

	// Timestamp is when the transport received the message. The dispatcher
	// reports the delta to processing start as transport delay.
	Timestamp time.Time
}

// IsDirect reports whether the message arrived outside any guild.
func (m *Message) IsDirect() bool {
	return m.GuildID == ""
}

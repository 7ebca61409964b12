package cmdkit

import (
	"context"
	"regexp"
	"strings"
)

// ParamType selects the conversion a bound token must pass.
type ParamType int

const (
	TypeString ParamType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeDuration
	TypeUser
	TypeChannel
	TypeRole
)

// ParamSpec describes one declared parameter of a command.
type ParamSpec struct {
	Name string
	Type ParamType

	// Pattern, when set, is matched against the raw token text. With
	// RejectPattern the match is inverted: a matching token is invalid.
	Pattern       *regexp.Regexp
	RejectPattern bool

	// Optional parameters may be skipped when absent or invalid.
	Optional bool

	// Remainder absorbs all remaining text as a single value, stripping one
	// layer of wrapping quotes if present.
	Remainder bool

	// Repeatable lets the final parameter bind additional consecutive valid
	// tokens as repeats. Only legal on the last spec of a registration.
	Repeatable bool
}

// Usage is one way to invoke a command: the invoker word optionally followed
// by a chain of verbs selecting a nested subcommand.
type Usage struct {
	Invoker string
	Verbs   []string
}

// Path returns the space-joined lowercase invocation path.
func (u Usage) Path() string {
	if len(u.Verbs) == 0 {
		return strings.ToLower(u.Invoker)
	}
	return strings.ToLower(u.Invoker + " " + strings.Join(u.Verbs, " "))
}

// Reply is the explicit success result a handler returns. A nil Reply is a
// silent success.
type Reply struct {
	Text string
}

// ReplyText is a shorthand for a plain text reply.
func ReplyText(text string) *Reply {
	return &Reply{Text: text}
}

// HandlerFunc executes a matched, parsed, gated command invocation.
type HandlerFunc func(ctx context.Context, inv *Invocation) (*Reply, error)

// Registration is the static description of one command. Registrations are
// immutable after the registry is built.
type Registration struct {
	Usage   Usage
	Aliases []Usage
	Params  []ParamSpec

	// Description is shown in help and usage output.
	Description string

	// UserPermissions and BotPermissions are permission bit sets the author
	// and the bot must fully hold in guild contexts.
	UserPermissions int64
	BotPermissions  int64

	OwnerOnly bool

	// AllowDirect permits invocation from direct messages; DirectOnly
	// restricts invocation to them.
	AllowDirect bool
	DirectOnly  bool

	// Typing brackets execution with the transport's typing indicator.
	Typing bool

	// Synchronous makes the dispatcher await execution before returning to
	// the transport; otherwise execution is fire-and-forget.
	Synchronous bool

	Run HandlerFunc

	module string
}

// Module returns the name of the module that declared the registration.
func (r *Registration) Module() string {
	return r.module
}

// usages returns the primary usage followed by all aliases.
func (r *Registration) usages() []Usage {
	out := make([]Usage, 0, 1+len(r.Aliases))
	out = append(out, r.Usage)
	out = append(out, r.Aliases...)
	return out
}

// FormatUsage renders a usage line: path plus parameter placeholders.
func (r *Registration) FormatUsage() string {
	var sb strings.Builder
	sb.WriteString(r.Usage.Path())
	for _, p := range r.Params {
		sb.WriteByte(' ')
		opener, closer := "<", ">"
		if p.Optional {
			opener, closer = "[", "]"
		}
		sb.WriteString(opener)
		sb.WriteString(p.Name)
		if p.Remainder {
			sb.WriteString("...")
		}
		if p.Repeatable {
			sb.WriteString("+")
		}
		sb.WriteString(closer)
	}
	return sb.String()
}

// Module is a named group of command registrations declared by one feature
// area. Modules are assembled into a Registry once at startup.
type Module struct {
	Name     string
	Commands []*Registration
}

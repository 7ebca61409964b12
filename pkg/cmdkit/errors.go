package cmdkit

import (
	"errors"
	"fmt"
)

// Handlers signal expected failures by returning one of the typed errors
// below; the dispatcher maps them to reply outcomes without logging them as
// errors. Anything else is treated as unexpected and hits the catch-all.

// IncorrectParamsError reports that the bound parameters were syntactically
// valid but semantically wrong (unknown target, out of range value).
type IncorrectParamsError struct {
	Reason    string
	ShowUsage bool
}

func (e *IncorrectParamsError) Error() string { return "incorrect parameters: " + e.Reason }

// UnclearParamsError reports parameters the handler could not disambiguate.
type UnclearParamsError struct {
	Reason string
}

func (e *UnclearParamsError) Error() string { return "unclear parameters: " + e.Reason }

// MissingUserPermsError lets a handler reject an author on a permission it
// checks itself, beyond the registration's declared set.
type MissingUserPermsError struct {
	Perms int64
}

func (e *MissingUserPermsError) Error() string { return "author is missing permissions" }

// MissingBotPermsError reports a bot-side permission discovered during
// execution.
type MissingBotPermsError struct {
	Perms int64
}

func (e *MissingBotPermsError) Error() string { return "bot is missing permissions" }

// MissingBotChannelPermsError reports a channel-scoped bot permission
// discovered during execution.
type MissingBotChannelPermsError struct {
	ChannelID string
	Perms     int64
}

func (e *MissingBotChannelPermsError) Error() string {
	return "bot is missing channel permissions"
}

// BusinessError is an expected failure with a plain reply for the author.
type BusinessError struct {
	Reason string
}

func (e *BusinessError) Error() string { return e.Reason }

// Failf returns a BusinessError; the convenience most handlers use.
func Failf(format string, args ...any) error {
	return &BusinessError{Reason: fmt.Sprintf(format, args...)}
}

// Platform sentinels: transports classify their wire errors into these two
// via the dispatcher's ClassifyError hook so the core stays transport-free.
var (
	// ErrAccessRevoked means the platform reports the bot lost access to
	// the target entirely (kicked, channel deleted).
	ErrAccessRevoked = errors.New("platform access revoked")

	// ErrPermissionRevoked means the platform rejected the action for a
	// missing bot permission.
	ErrPermissionRevoked = errors.New("platform permission revoked")
)

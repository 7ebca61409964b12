package cmdkit

// OutcomeKind discriminates the per-message result handed to the transport.
type OutcomeKind int

const (
	// OutcomeNone marks a silently dropped message: no prefix, no matching
	// command, or a failed prefix resolution. Not an error.
	OutcomeNone OutcomeKind = iota
	OutcomeSuccess
	OutcomeWrongSource
	OutcomeNotOwner
	OutcomeMissingUserPerms
	OutcomeMissingBotPerms
	OutcomeMissingBotAccess
	OutcomeNotEnoughParams
	OutcomeTooManyParams
	OutcomeInvalidParamFormat
	OutcomeIncorrectParams
	OutcomeUnclearParams
	OutcomeBusinessError
	OutcomeInternalError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "none"
	case OutcomeSuccess:
		return "success"
	case OutcomeWrongSource:
		return "wrong_source"
	case OutcomeNotOwner:
		return "not_owner"
	case OutcomeMissingUserPerms:
		return "missing_user_permissions"
	case OutcomeMissingBotPerms:
		return "missing_bot_permissions"
	case OutcomeMissingBotAccess:
		return "missing_bot_access"
	case OutcomeNotEnoughParams:
		return "not_enough_parameters"
	case OutcomeTooManyParams:
		return "too_many_parameters"
	case OutcomeInvalidParamFormat:
		return "invalid_parameter_format"
	case OutcomeIncorrectParams:
		return "incorrect_parameters"
	case OutcomeUnclearParams:
		return "unclear_parameters"
	case OutcomeBusinessError:
		return "business_error"
	case OutcomeInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Outcome is the one result object produced per inbound message. The
// transport renders Reply (and usage, when requested) back to the author.
type Outcome struct {
	Kind  OutcomeKind
	Reply string

	// ShowUsage asks the transport to append the matched command's usage
	// line to the reply.
	ShowUsage bool

	// Match is the resolved command; nil only for OutcomeNone.
	Match *Match

	// Perms carries the missing permission bits for the permission-related
	// kinds, so the transport can name them.
	Perms int64
}

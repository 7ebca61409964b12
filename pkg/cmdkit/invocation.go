package cmdkit

// Invocation carries everything a handler needs: the triggering message, the
// matched command, and the bound parameter tokens. It is owned by one
// dispatch and discarded after execution.
type Invocation struct {
	Message *Message
	Match   *Match

	bound []*Token
}

// Param returns the token bound to the named parameter. The second return is
// false when the parameter was optional and skipped.
func (inv *Invocation) Param(name string) (*Token, bool) {
	for _, t := range inv.bound {
		if t != nil && t.Spec != nil && t.Spec.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Params returns the bound tokens in declaration order, nil entries for
// skipped optional parameters.
func (inv *Invocation) Params() []*Token {
	return inv.bound
}

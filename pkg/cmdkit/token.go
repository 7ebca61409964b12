package cmdkit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// convKind enumerates the conversions a token caches. One slot per kind: a
// conversion is attempted at most once per token, success or failure.
type convKind int

const (
	convInt convKind = iota
	convFloat
	convBool
	convDuration
	convUser
	convChannel
	convRole
	convCount
)

type convResult struct {
	i   int64
	f   float64
	b   bool
	d   time.Duration
	id  string
	err error
}

// Token is a lazily-typed view over one delimited slice of the command body.
// Conversion accessors memoize their outcome, so re-validation during trial
// parses never reconverts the same (token, kind) pair.
type Token struct {
	// Raw is the token's text as it appeared in the body.
	Raw string

	// Start and End are byte offsets into the original body.
	Start int
	End   int

	// Spec is the parameter spec the token was bound to, set by the parser.
	Spec *ParamSpec

	// Repeats holds sibling tokens consumed for a repeatable spec.
	Repeats []*Token

	cache [convCount]*convResult
}

func (t *Token) String() string {
	return t.Raw
}

// Values returns the token followed by its repeats: every value bound to a
// repeatable parameter, in input order.
func (t *Token) Values() []*Token {
	return append([]*Token{t}, t.Repeats...)
}

func (t *Token) convert(kind convKind, fn func() convResult) *convResult {
	if r := t.cache[kind]; r != nil {
		return r
	}
	r := fn()
	t.cache[kind] = &r
	return &r
}

// Int converts the token to a signed integer.
func (t *Token) Int() (int64, error) {
	r := t.convert(convInt, func() convResult {
		i, err := strconv.ParseInt(t.Raw, 10, 64)
		return convResult{i: i, err: err}
	})
	return r.i, r.err
}

// Float converts the token to a float.
func (t *Token) Float() (float64, error) {
	r := t.convert(convFloat, func() convResult {
		f, err := strconv.ParseFloat(t.Raw, 64)
		return convResult{f: f, err: err}
	})
	return r.f, r.err
}

// Bool converts the token to a boolean. Accepts the strconv forms plus
// yes/no and on/off.
func (t *Token) Bool() (bool, error) {
	r := t.convert(convBool, func() convResult {
		switch strings.ToLower(t.Raw) {
		case "yes", "on":
			return convResult{b: true}
		case "no", "off":
			return convResult{b: false}
		}
		b, err := strconv.ParseBool(t.Raw)
		return convResult{b: b, err: err}
	})
	return r.b, r.err
}

// Duration converts the token to a time.Duration ("10m", "1h30m").
func (t *Token) Duration() (time.Duration, error) {
	r := t.convert(convDuration, func() convResult {
		d, err := time.ParseDuration(t.Raw)
		return convResult{d: d, err: err}
	})
	return r.d, r.err
}

// UserID extracts a user id from a mention (<@123>, <@!123>) or a bare id.
func (t *Token) UserID() (string, error) {
	r := t.convert(convUser, func() convResult {
		return mentionID(t.Raw, "@", "@!")
	})
	return r.id, r.err
}

// ChannelID extracts a channel id from a mention (<#123>) or a bare id.
func (t *Token) ChannelID() (string, error) {
	r := t.convert(convChannel, func() convResult {
		return mentionID(t.Raw, "#")
	})
	return r.id, r.err
}

// RoleID extracts a role id from a mention (<@&123>) or a bare id.
func (t *Token) RoleID() (string, error) {
	r := t.convert(convRole, func() convResult {
		return mentionID(t.Raw, "@&")
	})
	return r.id, r.err
}

// mentionID accepts <SIGIL123> for any of the given sigils, or a bare
// numeric id.
func mentionID(raw string, sigils ...string) convResult {
	if strings.HasPrefix(raw, "<") && strings.HasSuffix(raw, ">") {
		inner := raw[1 : len(raw)-1]
		for _, sig := range sigils {
			if rest, ok := strings.CutPrefix(inner, sig); ok && isDigits(rest) {
				return convResult{id: rest}
			}
		}
		return convResult{err: fmt.Errorf("malformed mention %q", raw)}
	}
	if isDigits(raw) {
		return convResult{id: raw}
	}
	return convResult{err: fmt.Errorf("%q is not a mention or id", raw)}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// matchesType reports whether the token converts cleanly to the given type.
func (t *Token) matchesType(pt ParamType) bool {
	var err error
	switch pt {
	case TypeString:
		return true
	case TypeInt:
		_, err = t.Int()
	case TypeFloat:
		_, err = t.Float()
	case TypeBool:
		_, err = t.Bool()
	case TypeDuration:
		_, err = t.Duration()
	case TypeUser:
		_, err = t.UserID()
	case TypeChannel:
		_, err = t.ChannelID()
	case TypeRole:
		_, err = t.RoleID()
	}
	return err == nil
}

package cmdkit

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ParseErrorKind classifies a parameter parse failure.
type ParseErrorKind int

const (
	ParseNotEnoughParams ParseErrorKind = iota
	ParseTooManyParams
	ParseInvalidFormat
)

// ParseError is a typed parameter parse failure. Position is the 1-based
// ordinal of the offending parameter spec where applicable.
type ParseError struct {
	Kind     ParseErrorKind
	Position int
	Name     string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case ParseNotEnoughParams:
		return fmt.Sprintf("not enough parameters: missing %q (parameter %d)", e.Name, e.Position)
	case ParseTooManyParams:
		return "too many parameters"
	default:
		return fmt.Sprintf("invalid format for parameter %q (parameter %d)", e.Name, e.Position)
	}
}

// quotePairs are the delimiters a remainder value may be wrapped in; exactly
// one layer is stripped.
var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'`':  '`',
	'“':  '”',
	'«':  '»',
}

// tokenize splits body into whitespace-delimited tokens with byte offsets.
func tokenize(body string) []*Token {
	var toks []*Token
	start := -1
	for i, r := range body {
		if unicode.IsSpace(r) {
			if start >= 0 {
				toks = append(toks, &Token{Raw: body[start:i], Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, &Token{Raw: body[start:], Start: start, End: len(body)})
	}
	return toks
}

// validate checks a token against a spec's declared type and optional
// pattern constraint. Type conversions are memoized on the token.
func validate(tok *Token, spec *ParamSpec) bool {
	if !tok.matchesType(spec.Type) {
		return false
	}
	if spec.Pattern != nil {
		matched := spec.Pattern.MatchString(tok.Raw)
		if spec.RejectPattern {
			return !matched
		}
		return matched
	}
	return true
}

// remainderToken re-synthesizes a single token spanning from the given
// token's start to the end of the body, stripping one layer of wrapping
// quotes when the value is fully enclosed.
func remainderToken(body string, from *Token) *Token {
	raw := body[from.Start:]
	first, fsize := utf8.DecodeRuneInString(raw)
	if closer, ok := quotePairs[first]; ok {
		last, lsize := utf8.DecodeLastRuneInString(raw)
		if last == closer && len(raw) >= fsize+lsize {
			return &Token{
				Raw:   raw[fsize : len(raw)-lsize],
				Start: from.Start + fsize,
				End:   len(body) - lsize,
			}
		}
	}
	return &Token{Raw: raw, Start: from.Start, End: len(body)}
}

// parseParams consumes the tokenized body left to right against the ordered
// specs, returning one bound token per spec (nil for skipped optionals).
//
// An optional spec that is not last performs a trial parse of the remaining
// specs before consuming a token, so it never starves a later required one.
// A repeatable final spec keeps consuming valid tokens; a trailing invalid
// token ends the repeats without raising a count error.
func parseParams(specs []ParamSpec, body string) ([]*Token, *ParseError) {
	toks := tokenize(body)
	bound := make([]*Token, len(specs))
	qi := 0

	for i := range specs {
		spec := &specs[i]

		if qi >= len(toks) {
			if spec.Optional {
				continue
			}
			return nil, &ParseError{Kind: ParseNotEnoughParams, Position: i + 1, Name: spec.Name}
		}

		if spec.Remainder {
			tok := remainderToken(body, toks[qi])
			if !validate(tok, spec) {
				if spec.Optional {
					continue
				}
				return nil, &ParseError{Kind: ParseInvalidFormat, Position: i + 1, Name: spec.Name}
			}
			tok.Spec = spec
			bound[i] = tok
			qi = len(toks)
			continue
		}

		tok := toks[qi]
		if !validate(tok, spec) {
			if spec.Optional {
				continue
			}
			return nil, &ParseError{Kind: ParseInvalidFormat, Position: i + 1, Name: spec.Name}
		}

		// Trial-parse the rest before letting a non-final optional consume
		// the token; if the rest only works with this token released, skip.
		if spec.Optional && i < len(specs)-1 && !fits(specs[i+1:], toks[qi+1:]) {
			continue
		}

		tok.Spec = spec
		bound[i] = tok
		qi++

		if spec.Repeatable {
			for qi < len(toks) && validate(toks[qi], spec) {
				rep := toks[qi]
				rep.Spec = spec
				tok.Repeats = append(tok.Repeats, rep)
				qi++
			}
			qi = len(toks)
		}
	}

	if qi < len(toks) {
		return nil, &ParseError{Kind: ParseTooManyParams}
	}
	return bound, nil
}

// fits reports whether the remaining specs can be satisfied by the remaining
// tokens. Used for the optional-parameter lookahead; conversion results are
// already memoized on the tokens, so trials are cheap.
func fits(specs []ParamSpec, toks []*Token) bool {
	qi := 0
	for i := range specs {
		spec := &specs[i]
		if qi >= len(toks) {
			if spec.Optional {
				continue
			}
			return false
		}
		if spec.Remainder {
			return true
		}
		if !validate(toks[qi], spec) {
			if spec.Optional {
				continue
			}
			return false
		}
		if spec.Optional && i < len(specs)-1 && !fits(specs[i+1:], toks[qi+1:]) {
			continue
		}
		qi++
		if spec.Repeatable {
			return true
		}
	}
	return qi >= len(toks)
}

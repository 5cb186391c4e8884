package httpu

import (
	"errors"
	"fmt"
)

// ParseErrorKind classifies why a datagram could not be decoded.
type ParseErrorKind int

const (
	// MalformedStartLine means the first line is not a recognizable request
	// or status line.
	MalformedStartLine ParseErrorKind = iota
	// MalformedHeader means a header line has no colon or an empty name, or a
	// known header carries a value that does not follow its grammar.
	MalformedHeader
	// MissingRequiredHeader means a header mandated for this message kind is
	// absent.
	MissingRequiredHeader
	// UnsupportedNotificationType means the NTS header carries a value other
	// than ssdp:alive, ssdp:byebye or ssdp:update.
	UnsupportedNotificationType
)

// String returns a human-readable representation of the kind
func (k ParseErrorKind) String() string {
	switch k {
	case MalformedStartLine:
		return "MalformedStartLine"
	case MalformedHeader:
		return "MalformedHeader"
	case MissingRequiredHeader:
		return "MissingRequiredHeader"
	case UnsupportedNotificationType:
		return "UnsupportedNotificationType"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", int(k))
	}
}

// ParseError is returned for any datagram that cannot be turned into a
// message. It carries only the structured detail needed to diagnose it.
type ParseError struct {
	Kind   ParseErrorKind
	Header string // header name, for header related kinds
	Line   string // offending line or value, when there is one
}

// Error implements the error interface
func (e *ParseError) Error() string {
	switch e.Kind {
	case MissingRequiredHeader:
		return fmt.Sprintf("missing required header %q", e.Header)
	case MalformedHeader:
		if e.Header != "" {
			return fmt.Sprintf("malformed header %q: %q", e.Header, e.Line)
		}
		return fmt.Sprintf("malformed header line: %q", e.Line)
	case MalformedStartLine:
		return fmt.Sprintf("malformed start line: %q", e.Line)
	case UnsupportedNotificationType:
		return fmt.Sprintf("unsupported notification type: %q", e.Line)
	default:
		return e.Kind.String()
	}
}

// Is lets errors.Is match on kind: errors.Is(err, &ParseError{Kind: MalformedHeader}).
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Header == "" || t.Header == e.Header
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr)
}

func malformedStartLine(line string) error {
	return &ParseError{Kind: MalformedStartLine, Line: line}
}

func malformedHeaderLine(line string) error {
	return &ParseError{Kind: MalformedHeader, Line: line}
}

// ErrMalformedHeader builds a MalformedHeader error for a known header whose
// value does not follow its grammar.
func ErrMalformedHeader(name, value string) error {
	return &ParseError{Kind: MalformedHeader, Header: name, Line: value}
}

// ErrMissingHeader builds a MissingRequiredHeader error.
func ErrMissingHeader(name string) error {
	return &ParseError{Kind: MissingRequiredHeader, Header: name}
}

// ErrUnsupportedNotificationType builds an UnsupportedNotificationType error.
func ErrUnsupportedNotificationType(nts string) error {
	return &ParseError{Kind: UnsupportedNotificationType, Header: "NTS", Line: nts}
}

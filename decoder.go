package duplexrpc

import "fmt"

// ParseErrorKind identifies why a chunk of the byte stream could not be
// turned into a message.
type ParseErrorKind int

const (
	ErrExceedsMaxLength ParseErrorKind = iota
	ErrInvalidFraming
	ErrInvalidJSON
	ErrInvalidBSON
	ErrTrailingGarbage
)

func (k ParseErrorKind) String() string {
	switch k {
	case ErrExceedsMaxLength:
		return "exceeds-max-length"
	case ErrInvalidFraming:
		return "invalid-framing"
	case ErrInvalidJSON:
		return "invalid-json"
	case ErrInvalidBSON:
		return "invalid-bson"
	case ErrTrailingGarbage:
		return "trailing-garbage"
	default:
		return "unknown-parse-error"
	}
}

// ParseError carries the offending bytes and cause for a framing or codec
// fault. Irrecoverable errors mean the decoder cannot make forward
// progress and the connection must be closed after the error is reported.
type ParseError struct {
	Kind          ParseErrorKind
	Bytes         []byte
	Cause         error
	Irrecoverable bool
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *ParseError) Unwrap() error { return e.Cause }

// item is one element of a decoder's output sequence: either a decoded
// message or a parse error. Never both.
type item struct {
	message  map[string]interface{}
	parseErr *ParseError
}

// streamDecoder turns raw byte chunks into a sequence of items, one
// framing mode per implementation. Feed is called for every chunk read off
// the wire; Drain is called exactly once when the upstream byte source is
// exhausted.
type streamDecoder interface {
	Feed(chunk []byte) []item
	Drain() []item
}

// Package exchange holds the pieces shared by the proxy's host, transport and
// coordinator: the pending backend exchange and its waiter, the dispatcher
// contract, the single-commit response outparam, and the error kinds a session
// can fail with.
package exchange

import (
	"errors"
)

// Kind classifies why a session failed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAdapter: a descriptor or body sink could not be built.
	KindAdapter
	// KindDispatch: the backend request could not be submitted.
	KindDispatch
	// KindExchange: the backend exchange resolved to a failure instead of a response.
	KindExchange
	// KindRelay: a body transfer failed on either leg.
	KindRelay
)

func (k Kind) String() string {
	switch k {
	case KindAdapter:
		return "adapter"
	case KindDispatch:
		return "dispatch"
	case KindExchange:
		return "exchange"
	case KindRelay:
		return "relay"
	default:
		return "unknown"
	}
}

// Error is a session failure of a given kind.
type Error struct {
	Kind Kind
	Err  error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrAdapter  = &Error{Kind: KindAdapter}
	ErrDispatch = &Error{Kind: KindDispatch}
	ErrExchange = &Error{Kind: KindExchange}
	ErrRelay    = &Error{Kind: KindRelay}
)

// Wrap returns err as an *Error of the given kind. An err that already carries
// a kind is returned unchanged.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Package common defines the error taxonomy shared by the blog core, both
// protocol adapters and the client. Callers should use errors.Is with the
// sentinels below, or KindOf, to classify failures.
package common

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories exposed to callers.
type Kind uint8

const (
	KindInternal Kind = iota
	KindConflict
	KindInvalidCredentials
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
)

var kindCodes = map[Kind]string{
	KindInternal:           "INTERNAL",
	KindConflict:           "CONFLICT",
	KindInvalidCredentials: "INVALID_CREDENTIALS",
	KindUnauthenticated:    "UNAUTHENTICATED",
	KindForbidden:          "FORBIDDEN",
	KindNotFound:           "NOT_FOUND",
	KindValidation:         "VALIDATION_ERROR",
}

// String returns the wire code of the kind, e.g. "NOT_FOUND".
func (k Kind) String() string {
	if s, ok := kindCodes[k]; ok {
		return s
	}
	return kindCodes[KindInternal]
}

// ParseKind is the inverse of Kind.String. Unknown codes map to KindInternal.
func ParseKind(code string) Kind {
	for k, s := range kindCodes {
		if s == code {
			return k
		}
	}
	return KindInternal
}

// Error is a classified failure. Message is safe to show to callers; Err is
// the underlying cause and must never cross a transport boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the per-kind sentinel matching e's kind, so
// errors.Is(err, ErrNotFound) holds for any NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && kindSentinels[t.Kind] == t
}

var (
	ErrInternal           = &Error{Kind: KindInternal, Message: "internal error"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "already exists"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid username or password"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation error"}

	// Token lifecycle errors, both of kind Unauthenticated.
	ErrTokenExpired   = &Error{Kind: KindUnauthenticated, Message: "token expired"}
	ErrTokenMalformed = &Error{Kind: KindUnauthenticated, Message: "token malformed"}
)

var kindSentinels = map[Kind]*Error{
	KindInternal:           ErrInternal,
	KindConflict:           ErrConflict,
	KindInvalidCredentials: ErrInvalidCredentials,
	KindUnauthenticated:    ErrUnauthenticated,
	KindForbidden:          ErrForbidden,
	KindNotFound:           ErrNotFound,
	KindValidation:         ErrValidation,
}

// NewError builds a classified error with a caller-safe message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind. The message is what callers will see.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// SafeMessage returns the message that may be shown to a remote caller.
// Unclassified and internal errors collapse to "internal error".
func SafeMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return ErrInternal.Message
	}
	return e.Error()
}

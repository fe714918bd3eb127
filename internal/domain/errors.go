package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures reported back to a connection.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindForbidden   ErrorKind = "forbidden"
	KindExhausted   ErrorKind = "exhausted"
	KindRateLimited ErrorKind = "rate_limited"
	KindInternal    ErrorKind = "internal"
)

// Error is the caller-facing failure carried by the error event.
type Error struct {
	Kind         ErrorKind
	Message      string
	RedirectHint string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind and message so sentinel errors work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// StatusCode maps the kind onto the HTTP-style code sent to clients.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindExhausted:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func NotFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }
func Forbidden(msg string) *Error  { return &Error{Kind: KindForbidden, Message: msg} }

// Internal wraps a collaborator failure. The cause is logged, never sent.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

var (
	ErrExhausted = &Error{Kind: KindExhausted, Message: "no secret codes available"}

	ErrEntryNotFound   = NotFound("not waiting for a match")
	ErrAlreadyMatched  = Conflict("already matched")
	ErrAlreadyHosting  = Conflict("already hosting a secret match")
	ErrAlreadyWaiting  = Conflict("already waiting for a random match")
	ErrNoPendingMatch  = Conflict("no pending match")
	ErrPairTaken       = Conflict("pairing no longer available")
	ErrJoinCodeInvalid = NotFound("Invalid code")
	ErrJoinOwnCode     = Conflict("cannot join your own match")
	ErrJoinCodeTaken   = Conflict("secret code already in use")

	ErrSessionNotFound   = &Error{Kind: KindNotFound, Message: "Invalid room", RedirectHint: "/"}
	ErrRoomFull          = &Error{Kind: KindConflict, Message: "Room is full", RedirectHint: "/"}
	ErrNotInRoom         = NotFound("User not found in room")
	ErrNotStarted        = Conflict("Game not started")
	ErrAlreadyStarted    = Conflict("Game already started")
	ErrAlreadyFinished   = Conflict("Game already finished")
	ErrAlreadyCommitted  = Conflict("Already set your number")
	ErrNotYourTurn       = Forbidden("Not your turn")
	ErrNumberLength      = Validation("Number length must be 4")
	ErrNumberNotNumeric  = Validation("Number must be number")
	ErrNumberNotUnique   = Validation("Number must be unique")
	ErrBadTurnTimeLimit  = Validation("turnTimeLimit must not be negative")
	ErrMalformedPayload  = Validation("malformed payload")
	ErrUnknownEvent      = NotFound("unknown event")
	ErrTooManyEvents     = &Error{Kind: KindRateLimited, Message: "too many events"}
)

// AsError converts any error into a caller-facing *Error; unknown errors
// become Internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Internal("internal error", err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide whether to retry, surface it
// on a single draft, or stop the whole run.
type Kind string

const (
	KindNetwork        Kind = "NETWORK_ERROR"
	KindAPI            Kind = "API_ERROR"
	KindParse          Kind = "PARSE_ERROR"
	KindInvalidFormat  Kind = "INVALID_FORMAT"
	KindValidation     Kind = "VALIDATION_ERROR"
	KindPersistence    Kind = "PERSISTENCE_ERROR"
	KindPartialFailure Kind = "PARTIAL_FAILURE"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// Error carries a Kind plus the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error without an underlying cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or
// KindInternal for errors that were never classified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human-readable part of err without the op/kind prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch {
		case e.Msg != "" && e.Err != nil:
			return e.Msg + ": " + e.Err.Error()
		case e.Msg != "":
			return e.Msg
		case e.Err != nil:
			return e.Err.Error()
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps a kind to the status code returned by the HTTP layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNetwork:
		return http.StatusGatewayTimeout
	case KindAPI, KindParse, KindInvalidFormat:
		return http.StatusBadGateway
	case KindPartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

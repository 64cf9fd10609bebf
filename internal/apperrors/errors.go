// Package apperrors implements the closed error-kind taxonomy of spec §7 as
// a single structured error type, in the shape of the teacher's
// MediaMTXError/PathError pair.
package apperrors

import (
	"fmt"
	"net/http"
	"time"
)

// Kind is a closed taxonomy of error categories. Never add a new Kind
// without updating the httpStatus table below; KindSessionInvalid is the
// only kind with its own WebSocket close code (CloseCodeSessionInvalid).
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not-found"
	KindBadState      Kind = "bad-state"
	KindBusy          Kind = "busy"
	KindRateLimited   Kind = "rate-limited"
	KindCapExceeded   Kind = "cap-exceeded"
	KindTimeout       Kind = "timeout"
	KindHostDriver    Kind = "host-driver"
	KindIO            Kind = "io"
	KindProtocol      Kind = "protocol"
	KindInternal      Kind = "internal"
	// KindSessionInvalid is a WebSocket-only kind: it closes the socket
	// with a distinct close code rather than returning an error frame.
	KindSessionInvalid Kind = "session-invalid"
)

// Error is the structured error carried across every component boundary.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
	Time    time.Time
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a new *Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Time: time.Now()}
}

// Wrap creates a new *Error of the given kind, wrapping cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause, Time: time.Now()}
}

// KindOf extracts the Kind from err, defaulting to KindInternal if err is
// not an *Error (or does not wrap one).
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

var httpStatus = map[Kind]int{
	KindConfiguration: http.StatusBadRequest,
	KindProtocol:      http.StatusBadRequest,
	KindNotFound:      http.StatusNotFound,
	KindBadState:      http.StatusConflict,
	KindRateLimited:   http.StatusTooManyRequests,
	KindCapExceeded:   http.StatusTooManyRequests,
	KindTimeout:       http.StatusGatewayTimeout,
	KindBusy:          http.StatusConflict,
	KindHostDriver:    http.StatusInternalServerError,
	KindIO:            http.StatusInternalServerError,
	KindInternal:      http.StatusInternalServerError,
}

// HTTPStatus maps a Kind to a REST status code per spec §7.
func HTTPStatus(kind Kind) int {
	if s, ok := httpStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WebSocket close code for session-invalid, per spec §7.
const CloseCodeSessionInvalid = 4004

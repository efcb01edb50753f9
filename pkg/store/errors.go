package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrStoreNotFound is matched by StoreNotFoundError.
	ErrStoreNotFound = errors.New("store: store not found")

	// ErrDuplicateStore is returned when a store name is registered twice.
	ErrDuplicateStore = errors.New("store: duplicate store")

	// ErrInvalidDeclaration is returned for declarations that cannot be
	// compiled into a store.
	ErrInvalidDeclaration = errors.New("store: invalid declaration")

	// ErrUnknownAction is returned when an action name is not declared, or
	// is declared with a different kind.
	ErrUnknownAction = errors.New("store: unknown action")

	// ErrCancelled is the cancellation signal transports may return.
	ErrCancelled = errors.New("store: call cancelled")
)

// StoreNotFoundError is returned when looking up an undeclared store.
type StoreNotFoundError struct {
	Name string
}

// Error implements error.
func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("store: store with name %q not found", e.Name)
}

// Is matches ErrStoreNotFound.
func (e *StoreNotFoundError) Is(target error) bool {
	return target == ErrStoreNotFound
}

// Error codes stored in ActionError.Code for transport failures without an
// HTTP status.
const (
	CodeNoServerResponse = "ERR_NO_SERVER_RESPONSE"
	CodeRequestSetup     = "ERR_REQUEST_SETUP"
)

// TransportErrorKind classifies transport failures.
type TransportErrorKind int

const (
	// KindCancelled means the call was aborted by a cancel request.
	KindCancelled TransportErrorKind = iota + 1

	// KindHTTP means the server responded with an error status.
	KindHTTP

	// KindNoResponse means the request was sent but no response arrived.
	KindNoResponse

	// KindRequestSetup means the request could not be built.
	KindRequestSetup
)

// String returns a human-readable name for the kind.
func (k TransportErrorKind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindHTTP:
		return "http"
	case KindNoResponse:
		return "no_response"
	case KindRequestSetup:
		return "request_setup"
	default:
		return "unknown"
	}
}

// TransportError is the error shape transports return so the dispatcher can
// classify failures.
type TransportError struct {
	Kind    TransportErrorKind
	Status  int
	Body    any
	Message string
	Err     error
}

// Error implements error.
func (e *TransportError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("transport: server responded %d", e.Status)
	case KindCancelled:
		return "transport: request cancelled"
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("transport: %s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrCancelled for cancellations.
func (e *TransportError) Is(target error) bool {
	return target == ErrCancelled && e.Kind == KindCancelled
}

// ActionError is the slot error recorded for a classified transport
// failure.
type ActionError struct {
	// Code is the HTTP status as a string, CodeNoServerResponse or
	// CodeRequestSetup.
	Code string `json:"code"`

	// Status is the HTTP status, or 0.
	Status int `json:"status,omitempty"`

	// Data is the server response body.
	Data any `json:"data,omitempty"`

	// Message describes request setup failures.
	Message string `json:"message,omitempty"`
}

// Error implements error.
func (e *ActionError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// MarshalJSON keeps the structured form when the error is rendered inside
// a Slot.
func (e *ActionError) MarshalJSON() ([]byte, error) {
	type wire ActionError
	return json.Marshal((*wire)(e))
}

// PanicError is recorded in a slot when an AsyncFunc panics.
type PanicError struct {
	Value any
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("store: action panicked: %v", e.Value)
}

// failure is a classified async failure.
type failure struct {
	cancelled bool
	delta     Delta
	slotErr   any
}

// classifyFailure maps an async error to its effect on the slot.
// state is the current state used to recognise delta-shaped rejections.
func classifyFailure(err error, state State, strict bool) failure {
	var value any = err

	var rej *Rejection
	if errors.As(err, &rej) {
		value = resolveThunk(rej.Value, state)
		if d, ok := asDelta(value, state, strict); ok {
			return failure{delta: d}
		}
		if e, ok := value.(error); ok {
			err = e
		} else {
			return failure{slotErr: value}
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		return failure{cancelled: true}
	}

	var te *TransportError
	if errors.As(err, &te) {
		switch te.Kind {
		case KindHTTP:
			return failure{slotErr: &ActionError{
				Code:   strconv.Itoa(te.Status),
				Status: te.Status,
				Data:   te.Body,
			}}
		case KindNoResponse:
			return failure{slotErr: &ActionError{Code: CodeNoServerResponse}}
		case KindRequestSetup:
			msg := te.Message
			if msg == "" && te.Err != nil {
				msg = te.Err.Error()
			}
			return failure{slotErr: &ActionError{Code: CodeRequestSetup, Message: msg}}
		}
	}

	return failure{slotErr: value}
}

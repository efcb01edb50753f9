package devtools

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vango-dev/vstore/pkg/store"
)

// MessageType identifies websocket messages.
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageError    MessageType = "error"
)

// Message is sent to websocket clients.
type Message struct {
	Type MessageType `json:"type"`
	*store.Snapshot
	Error string `json:"error,omitempty"`
}

// DispatchRequest is the body of an action dispatch.
type DispatchRequest struct {
	Args []any `json:"args"`
}

// DispatchResponse reports a dispatch.
type DispatchResponse struct {
	CallID   string          `json:"callId,omitempty"`
	Status   string          `json:"status"`
	Slot     *store.Slot     `json:"slot,omitempty"`
	Snapshot *store.Snapshot `json:"snapshot,omitempty"`
}

// StatusStarted is reported for async dispatches that were not awaited.
const StatusStarted = "started"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps store errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrStoreNotFound), errors.Is(err, store.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errWaitAborted):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

var (
	errBadRequest  = errors.New("devtools: bad request")
	errWaitAborted = errors.New("devtools: request ended before the call settled")
)

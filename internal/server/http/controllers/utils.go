package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/haywire/internal/channel"
	"github.com/rzbill/haywire/internal/queue"
	"github.com/rzbill/haywire/internal/runtime"
	"github.com/rzbill/haywire/internal/store"
)

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeFailure maps a domain error onto an HTTP status.
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidQueueName), errors.Is(err, queue.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrQueueNotFound), errors.Is(err, runtime.ErrAutoCreateDeny),
		errors.Is(err, channel.ErrAddressNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrQueueExists), errors.Is(err, runtime.ErrTooManyQueues):
		return http.StatusConflict
	case errors.Is(err, queue.ErrQueueShutdown), errors.Is(err, queue.ErrQueueClosed), errors.Is(err, channel.ErrShutdown):
		return http.StatusGone
	case errors.Is(err, runtime.ErrClosed), errors.Is(err, store.ErrClosed), errors.Is(err, channel.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseLimit parses a limit string and returns a valid limit value.
//
// Returns 0 for empty strings or invalid values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}

// parseTimeout reads a millisecond timeout. Empty uses def; invalid values
// report ok=false.
func parseTimeout(s string, def time.Duration) (time.Duration, bool) {
	if s == "" {
		return def, true
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func parseUint(s string) uint64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

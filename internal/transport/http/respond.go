package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"salonsched/internal/service/booking"
	"salonsched/internal/store"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the booking error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is an internal error and is logged, not leaked.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var ve *booking.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error()})
		return
	}

	var sue *booking.SlotUnavailableError
	if errors.As(err, &sue) {
		writeJSON(w, http.StatusConflict, errorBody{Error: "slot unavailable", Reason: sue.Reason})
		return
	}

	switch {
	case errors.Is(err, booking.ErrExternalAvailabilityUnknown):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, store.ErrIdempotencyConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "idempotency key reused with different parameters"})
	default:
		log.Error("request failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
)

// writeError maps domain errors onto plain-text HTTP errors. Anything unrecognised is a 500
// and gets logged.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		http.Error(w, strings.TrimPrefix(err.Error(), booking.ErrInvalidRequest.Error()+": "), http.StatusBadRequest)
	case errors.Is(err, booking.ErrBusinessNotFound),
		errors.Is(err, booking.ErrServiceNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, booking.ErrRuleNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, "time slot already booked, please pick another slot", http.StatusConflict)
	case errors.Is(err, booking.ErrSlugUsed), errors.Is(err, booking.ErrNotCancellable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, booking.ErrOutsideAvailability):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		logger.ErrorContext(r.Context(), "request failed", "err", err, "path", r.URL.Path)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// isMissingTarget reports errors that public read endpoints answer with an empty result.
func isMissingTarget(err error) bool {
	return errors.Is(err, booking.ErrBusinessNotFound) || errors.Is(err, booking.ErrServiceNotFound)
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/examgate/examgate/internal/exam"
)

// writeErr maps domain sentinels onto HTTP statuses. Anything unrecognized
// is a 500 so storage faults never masquerade as client mistakes.
func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, exam.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, exam.ErrNotAuthorized):
		code = http.StatusForbidden
	case errors.Is(err, exam.ErrValidation):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, exam.ErrAttemptConflict),
		errors.Is(err, exam.ErrMaxAttempts),
		errors.Is(err, exam.ErrInvalidTransition),
		errors.Is(err, exam.ErrWindowClosed):
		code = http.StatusConflict
	case errors.Is(err, exam.ErrAttemptExpired):
		code = http.StatusGone
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

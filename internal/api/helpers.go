package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "gymslots/internal/errors"
)

var errInvalidDate = errors.New("invalid date format, expected YYYY-MM-DD")

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// writeError maps service errors onto HTTP statuses. Internal errors are
// logged in full but only a generic message leaves the process.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": apperrors.UserMessage(err)})
}

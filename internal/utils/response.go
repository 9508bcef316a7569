package utils

import (
	"encoding/json"
	"net/http"

	"quickbite/internal/apperr"
)

// WriteJSON writes a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteError maps a domain error to its status code and a stable body shape.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	WriteJSON(w, status, map[string]string{
		"message": apperr.MessageOf(err),
		"kind":    string(apperr.KindOf(err)),
	})
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackzampolin/wenshape/internal/apperr"
	"github.com/jackzampolin/wenshape/internal/storage"
)

// errorResponse matches spec.md §6.2's "errors as {detail:string}"
// contract.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to spec.md §6.2's {detail} shape and an HTTP status
// derived from the error's type: storage.ErrNotFound/os-not-exist -> 404,
// *storage.ValidationError/*apperr.ValidationError -> 400, everything else
// -> 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case isValidationError(err):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}

func isValidationError(err error) bool {
	var storageValidation *storage.ValidationError
	var appValidation *apperr.ValidationError
	return errors.As(err, &storageValidation) || errors.As(err, &appValidation)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "missing request body"})
		return false
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func pathValue(r *http.Request, name string) string {
	return r.PathValue(name)
}

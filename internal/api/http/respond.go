package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"residential-cloud/internal/apperr"
	"residential-cloud/internal/auth"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError maps err to its HTTP status and writes the error envelope.
// Internal errors are not echoed to the client.
func RespondError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := apperr.HTTPStatus(err)
	body := errorBody{Kind: apperr.KindOf(err), Field: apperr.FieldOf(err), Message: err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		body.Kind = apperr.KindInternal
		body.Message = "internal error"
	}
	WriteJSON(w, status, map[string]errorBody{"error": body})
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("body", "invalid json: "+err.Error())
	}
	return nil
}

// ComplexID parses the {complexID} route parameter and checks it against the
// caller's token scope.
func ComplexID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "complexID"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("complexId", "complex id must be a positive integer")
	}
	if err := auth.CheckComplex(r.Context(), id); err != nil {
		return 0, err
	}
	return id, nil
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/odvcencio/promptgate/pkg/errors"
)

const (
	maxBodyBytesSmall   int64 = 64 << 10
	maxBodyBytesRequest int64 = 8 << 20
)

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) (int, error) {
	if r == nil || r.Body == nil {
		return http.StatusBadRequest, fmt.Errorf("request body required")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return http.StatusBadRequest, fmt.Errorf("request body required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBytes)
		}
		return http.StatusBadRequest, err
	}
	return 0, nil
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]any{"error": err.Error()}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		payload["code"] = string(appErr.Code)
	}
	if primary, fallback, ok := apperrors.AggregateCauses(err); ok {
		payload["primary_error"] = primary
		payload["fallback_error"] = fallback
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// statusForError maps the failure taxonomy onto HTTP statuses.
func statusForError(err *apperrors.Error) int {
	switch err.Code {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeSpawn, apperrors.ErrCodeNonZeroExit, apperrors.ErrCodeAggregate:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

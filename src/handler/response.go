package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"positionledger/src/apperror"

	logger "github.com/sirupsen/logrus"
)

var errInvalidPayload = apperror.New(apperror.KindValidation, "INVALID_PAYLOAD", "Invalid payload")

// decodePayload reads a single JSON object and rejects unknown fields.
func decodePayload(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errInvalidPayload.Withf("request body is empty")
		}
		return errInvalidPayload.Wrap(err).Withf("Invalid payload: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// writeOK answers {"status": 200, "message": <message>, ...fields}.
func writeOK(w http.ResponseWriter, message string, fields map[string]interface{}) {
	body := map[string]interface{}{
		"status":  http.StatusOK,
		"message": message,
	}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError maps err to its HTTP status. Internal causes are logged, never echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.StatusCode(err)

	entry := logger.WithFields(logger.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}

	writeJSON(w, status, map[string]interface{}{
		"status":            status,
		"message":           http.StatusText(status),
		"error_code":        apperror.CodeOf(err),
		"error_description": apperror.MessageOf(err),
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperror.New(apperror.KindUnauthorized, "UNAUTHORIZED", "Unauthorized"))
}

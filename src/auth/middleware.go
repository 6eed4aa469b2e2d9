package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"positionledger/src/apperror"
	"positionledger/src/model"

	logger "github.com/sirupsen/logrus"
)

type userLoader interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// Middleware authenticates "Authorization: Bearer <token>" and puts the user
// on the request context.
func Middleware(tokens *TokenManager, users userLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if header == "" || token == "" || token == header {
				unauthorized(w, ErrMissingToken)
				return
			}

			userID, err := tokens.Validate(token)
			if err != nil {
				logger.WithError(err).Debug("rejected bearer token")
				unauthorized(w, err)
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				logger.WithError(err).WithField("user_id", userID).Error("failed to load authenticated user")
				writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
					"status":            http.StatusInternalServerError,
					"message":           http.StatusText(http.StatusInternalServerError),
					"error_code":        "INTERNAL_ERROR",
					"error_description": "failed to load user",
				})
				return
			}
			if user == nil {
				unauthorized(w, ErrInvalidToken.Withf("user #%d no longer exists", userID))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"status":            http.StatusUnauthorized,
		"message":           http.StatusText(http.StatusUnauthorized),
		"error_code":        apperror.CodeOf(err),
		"error_description": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode auth response")
	}
}

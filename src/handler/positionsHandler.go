package handler

import (
	"context"
	"net/http"
	"strconv"

	"positionledger/src/apperror"
	"positionledger/src/auth"
	"positionledger/src/lifecycle"
	"positionledger/src/model"
	"positionledger/src/repository"

	"github.com/go-chi/chi/v5"
)

type positionService interface {
	Open(ctx context.Context, user *model.User, payload model.OpenPositionPayload) (*model.Position, error)
	Close(ctx context.Context, user *model.User, req lifecycle.CloseRequest) (*lifecycle.CloseResult, error)
	Get(ctx context.Context, user *model.User, id uint) (*model.Position, error)
	List(ctx context.Context, user *model.User, options repository.PositionListOptions) ([]model.Position, error)
}

var errInvalidQuery = apperror.New(apperror.KindValidation, "INVALID_QUERY", "invalid query parameter")

// OpenPositionHandler handles POST /user/order.
func OpenPositionHandler(svc positionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		var payload model.OpenPositionPayload
		if err := decodePayload(r, &payload); err != nil {
			writeError(w, r, err)
			return
		}

		position, err := svc.Open(r.Context(), user, payload)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeOK(w, http.StatusText(http.StatusOK), map[string]interface{}{"order": position})
	}
}

// ClosePositionHandler handles POST /user/close-position. A missing or zero
// quantity closes the whole remaining position.
func ClosePositionHandler(svc positionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		var payload model.ClosePositionPayload
		if err := decodePayload(r, &payload); err != nil {
			writeError(w, r, err)
			return
		}
		if payload.PositionID == 0 {
			writeError(w, r, errInvalidPayload.Withf("positionId is required"))
			return
		}

		result, err := svc.Close(r.Context(), user, lifecycle.CloseRequest{
			PositionID: payload.PositionID,
			Quantity:   payload.Quantity,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		warnings := result.Warnings
		if warnings == nil {
			warnings = []apperror.Warning{}
		}
		writeOK(w, "Position closed", map[string]interface{}{
			"order":       result.Closed,
			"remaining":   result.Remaining,
			"user":        result.User,
			"transaction": result.Transaction,
			"warnings":    warnings,
		})
	}
}

// ListPositionsHandler handles GET /user/order.
// Supports pagination (page, pageSize) and active=true.
func ListPositionsHandler(svc positionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		query := r.URL.Query()

		page := 1
		if pageParam := query.Get("page"); pageParam != "" {
			parsed, err := strconv.Atoi(pageParam)
			if err != nil || parsed <= 0 {
				writeError(w, r, errInvalidQuery.Withf("invalid page"))
				return
			}
			page = parsed
		}

		pageSize := 50
		if sizeParam := query.Get("pageSize"); sizeParam != "" {
			parsed, err := strconv.Atoi(sizeParam)
			if err != nil || parsed <= 0 || parsed > 500 {
				writeError(w, r, errInvalidQuery.Withf("invalid pageSize"))
				return
			}
			pageSize = parsed
		}

		activeOnly := false
		if activeParam := query.Get("active"); activeParam != "" {
			parsed, err := strconv.ParseBool(activeParam)
			if err != nil {
				writeError(w, r, errInvalidQuery.Withf("invalid active"))
				return
			}
			activeOnly = parsed
		}

		positions, err := svc.List(r.Context(), user, repository.PositionListOptions{
			ActiveOnly: activeOnly,
			Limit:      pageSize,
			Offset:     (page - 1) * pageSize,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		if positions == nil {
			positions = []model.Position{}
		}

		writeOK(w, http.StatusText(http.StatusOK), map[string]interface{}{"orders": positions})
	}
}

// GetPositionHandler handles GET /user/order/{id}.
func GetPositionHandler(svc positionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id == 0 {
			writeError(w, r, errInvalidQuery.Withf("invalid position id"))
			return
		}

		position, err := svc.Get(r.Context(), user, uint(id))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeOK(w, http.StatusText(http.StatusOK), map[string]interface{}{"order": position})
	}
}

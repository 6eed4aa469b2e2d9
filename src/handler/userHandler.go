package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"positionledger/src/apperror"
	"positionledger/src/auth"
	"positionledger/src/controller"
	"positionledger/src/model"
	"positionledger/src/repository"
)

type transactionHistory interface {
	History(ctx context.Context, userID uint, limit int) ([]model.Transaction, error)
}

type watchlistStore interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	AddSymbol(ctx context.Context, userID uint, symbol string) error
	RemoveSymbol(ctx context.Context, userID uint, symbol string) (bool, error)
}

var (
	errSymbolRequired = apperror.New(apperror.KindValidation, "SYMBOL_REQUIRED", "symbol is required")
	errSymbolMissing  = apperror.New(apperror.KindValidation, "SYMBOL_NOT_IN_WATCHLIST", "symbol not exists in user watchlist")
)

// ProfileHandler handles GET /user. The auth middleware already loaded the
// caller with wallet, margin and watchlist.
func ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		writeOK(w, http.StatusText(http.StatusOK), map[string]interface{}{"user": user})
	}
}

// TransactionsHandler handles GET /user/transactions.
func TransactionsHandler(history transactionHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 || parsed > 500 {
				writeError(w, r, errInvalidQuery.Withf("invalid limit"))
				return
			}
			limit = parsed
		}

		txns, err := history.History(r.Context(), user.ID, limit)
		if err != nil {
			writeError(w, r, apperror.Internal("failed to list transactions", err))
			return
		}
		if txns == nil {
			txns = []model.Transaction{}
		}

		writeOK(w, http.StatusText(http.StatusOK), map[string]interface{}{"transactions": txns})
	}
}

// AddSymbolHandler handles POST /user/symbol.
func AddSymbolHandler(store watchlistStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		symbol, err := decodeSymbol(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if user.HasSymbol(symbol) {
			writeError(w, r, repository.ErrSymbolExists)
			return
		}
		if err := store.AddSymbol(r.Context(), user.ID, symbol); err != nil {
			if !errors.Is(err, repository.ErrSymbolExists) {
				err = apperror.Internal("failed to add symbol", err)
			}
			writeError(w, r, err)
			return
		}

		updated, err := store.FindByID(r.Context(), user.ID)
		if err != nil {
			writeError(w, r, apperror.Internal("failed to reload user", err))
			return
		}

		writeOK(w, http.StatusText(http.StatusOK), map[string]interface{}{
			"symbol": symbol,
			"user":   updated,
		})
	}
}

// RemoveSymbolHandler handles DELETE /user/symbol.
func RemoveSymbolHandler(store watchlistStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		symbol, err := decodeSymbol(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		removed, err := store.RemoveSymbol(r.Context(), user.ID, symbol)
		if err != nil {
			writeError(w, r, apperror.Internal("failed to remove symbol", err))
			return
		}
		if !removed {
			writeError(w, r, errSymbolMissing)
			return
		}

		updated, err := store.FindByID(r.Context(), user.ID)
		if err != nil {
			writeError(w, r, apperror.Internal("failed to reload user", err))
			return
		}

		writeOK(w, http.StatusText(http.StatusOK), map[string]interface{}{"user": updated})
	}
}

func decodeSymbol(r *http.Request) (string, error) {
	var payload model.WatchSymbolPayload
	if err := decodePayload(r, &payload); err != nil {
		return "", err
	}

	symbol := controller.NormalizeSymbol(payload.Symbol)
	if symbol == "" {
		return "", errSymbolRequired
	}
	return symbol, nil
}

package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"positionledger/src/apperror"
	"positionledger/src/controller"
	"positionledger/src/ledger"
	"positionledger/src/margin"
	"positionledger/src/metrics"
	"positionledger/src/model"
	"positionledger/src/repository"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrPositionNotFound     = apperror.New(apperror.KindNotFound, "POSITION_NOT_FOUND", "position not found")
	ErrInsufficientQuantity = apperror.New(apperror.KindValidation, "INSUFFICIENT_QUANTITY", "position stock_quantity is shorter than provided quantity")
	ErrInvalidQuantity      = apperror.New(apperror.KindValidation, "INVALID_QUANTITY", "quantity must be positive")
	ErrInvalidPrice         = apperror.New(apperror.KindValidation, "INVALID_PRICE", "stock_price must be positive")
	ErrInvalidPositionType  = apperror.New(apperror.KindValidation, "INVALID_POSITION_TYPE", "type must be buy or sell")
	ErrInvalidStockName     = apperror.New(apperror.KindValidation, "INVALID_STOCK_NAME", "stock_name is required")
	// ErrUserConflict is reported as a warning when the wallet kept moving
	// under every retry of the close-time update.
	ErrUserConflict = apperror.New(apperror.KindConflict, "USER_CONFLICT", "wallet changed concurrently, balance and margin were not updated")
	// ErrWalletNotUpdated is the warning for a store failure during settlement.
	ErrWalletNotUpdated = apperror.New(apperror.KindInternal, "WALLET_NOT_UPDATED", "position closed, balance and margin were not updated")
)

const (
	serviceName     = "lifecycle"
	defaultCacheTTL = 10 * time.Minute
)

type positionStore interface {
	Create(ctx context.Context, position *model.Position) error
	FindActive(ctx context.Context, id, userID uint) (*model.Position, error)
	FindByID(ctx context.Context, id, userID uint) (*model.Position, error)
	Close(ctx context.Context, id uint, expectedQty int64, closePrice decimal.Decimal) (*model.Position, error)
	Split(ctx context.Context, position *model.Position, closeQty int64, closePrice decimal.Decimal) (*model.Position, *model.Position, error)
	ListByUser(ctx context.Context, userID uint, options repository.PositionListOptions) ([]model.Position, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	UpdateWalletMargin(ctx context.Context, user *model.User, wallet, margin decimal.Decimal) (*model.User, error)
}

type recorder interface {
	Record(ctx context.Context, userID uint, delta decimal.Decimal, source string) (*model.Transaction, error)
}

// CloseRequest closes Quantity units of a position; zero closes what is left.
type CloseRequest struct {
	PositionID uint
	Quantity   int64
}

// CloseResult is what a successful close committed. Closed is the terminal
// record (the split-off child on a partial close), Remaining is the still-open
// position or nil. Warnings carry best-effort failures.
type CloseResult struct {
	Closed      *model.Position
	Remaining   *model.Position
	User        *model.User
	Transaction *model.Transaction
	Warnings    []apperror.Warning
}

// Manager owns the position state machine OPEN -> {OPEN (reduced), CLOSED}.
type Manager struct {
	positions  positionStore
	users      userStore
	calculator *margin.Calculator
	ledger     recorder

	cache      PositionCache
	prices     PriceSource
	exceptions controller.ExceptionWriter
	metrics    *metrics.Metrics
	retries    int
}

func NewManager(positions positionStore, users userStore, calculator *margin.Calculator, ledger recorder) *Manager {
	return &Manager{
		positions:  positions,
		users:      users,
		calculator: calculator,
		ledger:     ledger,
		cache:      NewMemoryCache(defaultCacheTTL),
		prices:     ZeroPriceSource{},
		retries:    3,
	}
}

func (m *Manager) WithCache(cache PositionCache) *Manager {
	if cache != nil {
		m.cache = cache
	}
	return m
}

func (m *Manager) WithPriceSource(prices PriceSource) *Manager {
	if prices != nil {
		m.prices = prices
	}
	return m
}

func (m *Manager) WithExceptions(exceptions controller.ExceptionWriter) *Manager {
	m.exceptions = exceptions
	return m
}

func (m *Manager) WithMetrics(mt *metrics.Metrics) *Manager {
	m.metrics = mt
	return m
}

// WithRetries bounds how often the close-time wallet update is retried after a
// version conflict.
func (m *Manager) WithRetries(retries int) *Manager {
	if retries >= 0 {
		m.retries = retries
	}
	return m
}

// Open validates and persists a new active position for user.
func (m *Manager) Open(ctx context.Context, user *model.User, payload model.OpenPositionPayload) (*model.Position, error) {
	stockName := strings.TrimSpace(payload.StockName)
	switch {
	case stockName == "":
		return nil, ErrInvalidStockName
	case payload.StockQuantity <= 0:
		return nil, ErrInvalidQuantity.Withf("stock_quantity must be positive, got %d", payload.StockQuantity)
	case !payload.StockPrice.IsPositive():
		return nil, ErrInvalidPrice.Withf("stock_price must be positive, got %s", payload.StockPrice.String())
	case !model.IsKnownStockType(payload.StockType):
		return nil, margin.ErrInvalidStockClass.Withf("invalid stock class: %q", payload.StockType)
	case payload.Type != model.PositionTypeBuy && payload.Type != model.PositionTypeSell:
		return nil, ErrInvalidPositionType.Withf("type must be buy or sell, got %q", payload.Type)
	}

	position := &model.Position{
		UserID:        user.ID,
		StockName:     stockName,
		StockType:     payload.StockType,
		IsNSE:         payload.IsNSE,
		StockPrice:    payload.StockPrice,
		StockQuantity: payload.StockQuantity,
		Type:          payload.Type,
		IsInteraday:   payload.IsInteraday,
		IsActive:      true,
	}
	if err := m.positions.Create(ctx, position); err != nil {
		return nil, apperror.Internal("failed to open position", err)
	}

	m.cacheSet(ctx, user.ID, position)
	m.metrics.Opened()

	return position, nil
}

// Close closes all or part of an active position and then, best-effort,
// recomputes the owner's balance and margin and records the wallet delta.
// Once the position transition commits the request succeeds; later failures
// only add warnings.
func (m *Manager) Close(ctx context.Context, user *model.User, req CloseRequest) (*CloseResult, error) {
	started := time.Now()
	fields := logger.Fields{
		"service":     serviceName,
		"op":          "Close",
		"user_id":     user.ID,
		"position_id": req.PositionID,
		"quantity":    req.Quantity,
	}

	if req.Quantity < 0 {
		return nil, ErrInvalidQuantity.Withf("quantity must not be negative, got %d", req.Quantity)
	}

	position, err := m.positions.FindActive(ctx, req.PositionID, user.ID)
	if err != nil {
		return nil, apperror.Internal("failed to load position", err)
	}
	if position == nil {
		return nil, ErrPositionNotFound.Withf("Position with #%d not found.", req.PositionID)
	}

	if req.Quantity > position.StockQuantity {
		return nil, ErrInsufficientQuantity
	}

	closeQty := req.Quantity
	if closeQty == 0 {
		closeQty = position.StockQuantity
	}
	partial := closeQty < position.StockQuantity

	closePrice, err := m.prices.ClosePrice(ctx, position)
	if err != nil {
		return nil, apperror.Internal("failed to quote close price", err)
	}

	result := &CloseResult{}
	if partial {
		result.Remaining, result.Closed, err = m.positions.Split(ctx, position, closeQty, closePrice)
	} else {
		result.Closed, err = m.positions.Close(ctx, position.ID, position.StockQuantity, closePrice)
	}
	m.cacheInvalidate(ctx, position.ID)
	if err != nil {
		if errors.Is(err, repository.ErrQuantityConflict) {
			m.metrics.CloseConflict()
			return nil, err
		}
		return nil, apperror.Internal("failed to close position", err)
	}

	logger.WithFields(fields).WithFields(logger.Fields{
		"close_qty": closeQty,
		"partial":   partial,
	}).Info("Position closed")

	profit := closePrice.Sub(position.StockPrice)
	m.settle(ctx, user, position, closeQty, profit, result)

	m.metrics.Closed(partial, time.Since(started).Seconds())
	return result, nil
}

// settle applies the margin calculator to the owner's wallet. The user is
// re-read on every attempt so a retry after a version conflict recomputes from
// the current balance.
func (m *Manager) settle(ctx context.Context, user *model.User, position *model.Position, closeQty int64, profit decimal.Decimal, result *CloseResult) {
	for attempt := 0; attempt <= m.retries; attempt++ {
		current, err := m.users.FindByID(ctx, user.ID)
		if err != nil || current == nil {
			if err == nil {
				err = repository.ErrUserNotFound.Withf("user #%d not found", user.ID)
			}
			m.warn(ctx, result, "wallet", user.ID, walletAdvisory(err), nil)
			return
		}

		computed, err := m.calculator.ComputeMarginBalance(margin.Input{
			Balance:     current.Wallet,
			Quantity:    closeQty,
			Amount:      position.StockPrice,
			IsInteraday: position.IsInteraday,
			StockType:   position.StockType,
			Profit:      profit,
		})
		if err != nil {
			result.User = current
			m.warn(ctx, result, "margin", user.ID, err, map[string]interface{}{
				"position_id": position.ID,
				"stock_type":  position.StockType,
			})
			return
		}

		updated, err := m.users.UpdateWalletMargin(ctx, current, computed.Balance, computed.Margin)
		if errors.Is(err, repository.ErrUserVersionConflict) {
			logger.WithFields(logger.Fields{
				"service": serviceName,
				"op":      "settle",
				"user_id": user.ID,
				"attempt": attempt + 1,
			}).Debug("Wallet version moved, retrying")
			continue
		}
		if err != nil {
			result.User = current
			m.warn(ctx, result, "wallet", user.ID, walletAdvisory(err), nil)
			return
		}

		result.User = updated
		m.record(ctx, result, user.ID, updated.Wallet.Sub(current.Wallet))
		return
	}

	m.warn(ctx, result, "wallet", user.ID, ErrUserConflict, map[string]interface{}{
		"attempts": m.retries + 1,
	})
	if current, err := m.users.FindByID(ctx, user.ID); err == nil && current != nil {
		result.User = current
	}
}

func (m *Manager) record(ctx context.Context, result *CloseResult, userID uint, delta decimal.Decimal) {
	if m.ledger == nil {
		return
	}
	txn, err := m.ledger.Record(ctx, userID, delta, model.TransactionSourcePositionClose)
	if err != nil {
		m.warn(ctx, result, "ledger", userID, ledger.NotRecorded(err), map[string]interface{}{"delta": delta.String()})
		return
	}
	result.Transaction = txn
}

// walletAdvisory keeps typed errors and hides raw store failures behind
// ErrWalletNotUpdated.
func walletAdvisory(err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return ErrWalletNotUpdated.Wrap(err)
}

func (m *Manager) warn(ctx context.Context, result *CloseResult, module string, userID uint, err error, details map[string]interface{}) {
	result.Warnings = append(result.Warnings, apperror.WarningFrom(err))
	m.metrics.BestEffortFailed(module)
	controller.Capture(ctx, m.exceptions, controller.Failure{
		Service: serviceName,
		Module:  module,
		Method:  "Close",
		UserID:  userID,
		Err:     err,
		Context: details,
	})
}

// Get returns one of user's positions in any state. The cache is consulted
// first; the store is authoritative. A store hit is cached only once the
// position is closed: an open row read here may already be superseded by a
// close that invalidated the cache while the read was in flight.
func (m *Manager) Get(ctx context.Context, user *model.User, id uint) (*model.Position, error) {
	if cached, err := m.cache.Get(ctx, id); err != nil {
		logger.WithField("position_id", id).WithError(err).Warn("Position cache read failed, using store")
	} else if cached != nil && cached.UserID == user.ID {
		return cached, nil
	}

	position, err := m.positions.FindByID(ctx, id, user.ID)
	if err != nil {
		return nil, apperror.Internal("failed to load position", err)
	}
	if position == nil {
		return nil, ErrPositionNotFound.Withf("Position with #%d not found.", id)
	}

	if !position.IsActive {
		m.cacheSet(ctx, user.ID, position)
	}
	return position, nil
}

// List returns user's positions from the store, newest first.
func (m *Manager) List(ctx context.Context, user *model.User, options repository.PositionListOptions) ([]model.Position, error) {
	positions, err := m.positions.ListByUser(ctx, user.ID, options)
	if err != nil {
		return nil, apperror.Internal("failed to list positions", err)
	}
	return positions, nil
}

func (m *Manager) cacheSet(ctx context.Context, userID uint, position *model.Position) {
	if err := m.cache.Set(ctx, position); err != nil {
		m.metrics.BestEffortFailed("cache")
		logger.WithFields(logger.Fields{
			"service":     serviceName,
			"user_id":     userID,
			"position_id": position.ID,
		}).WithError(err).Warn("Failed to cache position")
	}
}

// cacheInvalidate drops the live position even when the close failed, the
// next read then goes to the store.
func (m *Manager) cacheInvalidate(ctx context.Context, id uint) {
	if err := m.cache.Invalidate(ctx, id); err != nil {
		m.metrics.BestEffortFailed("cache")
		logger.WithField("position_id", id).WithError(err).Warn("Failed to invalidate cached position")
	}
}

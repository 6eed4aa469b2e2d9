package repository

import (
	"context"
	"errors"
	"time"

	"positionledger/src/apperror"
	"positionledger/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrQuantityConflict means the position was closed or resized by someone else
// between the read and the compare-and-swap. Retrying re-reads the current state.
var ErrQuantityConflict = apperror.New(apperror.KindConflict, "QUANTITY_CONFLICT", "position quantity changed concurrently, retry the request")

// PositionListOptions narrows ListByUser.
type PositionListOptions struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// PositionRepository is the durable store of positions. Every mutation of an
// open position is a compare-and-swap on (id, is_active, stock_quantity).
type PositionRepository struct {
	db     *gorm.DB
	reader *gorm.DB
}

func NewPositionRepository(db *gorm.DB) *PositionRepository {
	logger.WithField("component", "PositionRepository").
		Debug("Creating new PositionRepository")

	return &PositionRepository{db: db, reader: db}
}

// WithDB allows overriding the underlying *gorm.DB instance, e.g. a
// transaction the returned repository's writes then join.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db, reader: db}
}

// WithReader routes ListByUser to a separate (replica) connection.
func (r *PositionRepository) WithReader(reader *gorm.DB) *PositionRepository {
	if reader == nil {
		reader = r.db
	}
	return &PositionRepository{db: r.db, reader: reader}
}

// Create inserts a new position; the given struct receives the generated ID.
func (r *PositionRepository) Create(ctx context.Context, position *model.Position) error {
	fields := logger.Fields{
		"repo":    "PositionRepository",
		"op":      "Create",
		"user_id": position.UserID,
		"stock":   position.StockName,
		"qty":     position.StockQuantity,
	}
	logger.WithFields(fields).Debug("Creating position")

	if err := r.db.WithContext(ctx).Create(position).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to create position")
		return err
	}

	logger.WithFields(fields).WithField("position_id", position.ID).Info("Position created")
	return nil
}

// FindActive returns the open position id owned by userID.
// Returns (nil, nil) if it does not exist, is closed or belongs to someone else.
func (r *PositionRepository) FindActive(ctx context.Context, id, userID uint) (*model.Position, error) {
	return r.findOne(ctx, "FindActive", r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true))
}

// FindByID returns position id owned by userID in any state.
// Returns (nil, nil) if the position is not found.
func (r *PositionRepository) FindByID(ctx context.Context, id, userID uint) (*model.Position, error) {
	return r.findOne(ctx, "FindByID", r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID))
}

func (r *PositionRepository) findOne(ctx context.Context, op string, query *gorm.DB) (*model.Position, error) {
	var position model.Position

	err := query.First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(logger.Fields{"repo": "PositionRepository", "op": op}).
				Debug("Position not found")
			return nil, nil
		}

		logger.WithFields(logger.Fields{"repo": "PositionRepository", "op": op}).
			WithError(err).Error("Failed to fetch position")
		return nil, err
	}

	return &position, nil
}

// ReduceQuantity sets the open quantity of position id to newQty, provided it
// is still active and still holds expectedQty. It is the compare-and-swap
// every partial close goes through; inside a transaction (see WithDB) it runs
// as a savepoint of it.
func (r *PositionRepository) ReduceQuantity(ctx context.Context, id uint, expectedQty, newQty int64) (*model.Position, error) {
	var updated *model.Position

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Position{}).
			Where("id = ? AND is_active = ? AND stock_quantity = ?", id, true, expectedQty).
			Update("stock_quantity", newQty)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrQuantityConflict
		}

		var err error
		updated, err = reload(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Close marks position id as terminal, provided it is still active with expectedQty.
func (r *PositionRepository) Close(ctx context.Context, id uint, expectedQty int64, closePrice decimal.Decimal) (*model.Position, error) {
	fields := logger.Fields{
		"repo":         "PositionRepository",
		"op":           "Close",
		"position_id":  id,
		"expected_qty": expectedQty,
	}
	logger.WithFields(fields).Debug("Closing position")

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND is_active = ? AND stock_quantity = ?", id, true, expectedQty).
		Updates(map[string]interface{}{
			"is_active":   false,
			"close_price": closePrice,
			"closed_at":   now,
		})
	if res.Error != nil {
		logger.WithFields(fields).WithError(res.Error).Error("Failed to close position")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		logger.WithFields(fields).Warn("Close lost compare-and-swap")
		return nil, ErrQuantityConflict
	}

	closed, err := reload(r.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	logger.WithFields(fields).Info("Position closed")
	return closed, nil
}

// Split closes closeQty units of position: the live row keeps the remainder and
// a new inactive row carrying closeQty, the entry attributes and closePrice is
// inserted. Both writes share one transaction.
func (r *PositionRepository) Split(
	ctx context.Context,
	position *model.Position,
	closeQty int64,
	closePrice decimal.Decimal,
) (remaining *model.Position, closed *model.Position, err error) {

	fields := logger.Fields{
		"repo":         "PositionRepository",
		"op":           "Split",
		"position_id":  position.ID,
		"expected_qty": position.StockQuantity,
		"close_qty":    closeQty,
	}
	logger.WithFields(fields).Debug("Splitting position")

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		remaining, err = r.WithDB(tx).ReduceQuantity(ctx, position.ID, position.StockQuantity, position.StockQuantity-closeQty)
		if err != nil {
			return err
		}

		parentID := position.ID
		now := time.Now().UTC()
		closed = &model.Position{
			UserID:        position.UserID,
			ParentID:      &parentID,
			StockName:     position.StockName,
			StockType:     position.StockType,
			IsNSE:         position.IsNSE,
			StockPrice:    position.StockPrice,
			StockQuantity: closeQty,
			Type:          position.Type,
			IsInteraday:   position.IsInteraday,
			IsActive:      false,
			ClosePrice:    closePrice,
			ClosedAt:      &now,
		}
		return tx.Create(closed).Error
	})
	if err != nil {
		if errors.Is(err, ErrQuantityConflict) {
			logger.WithFields(fields).Warn("Split lost compare-and-swap")
		} else {
			logger.WithFields(fields).WithError(err).Error("Failed to split position")
		}
		return nil, nil, err
	}

	logger.WithFields(fields).WithField("closed_id", closed.ID).Info("Position split")
	return remaining, closed, nil
}

// ListByUser returns the user's positions, newest first.
func (r *PositionRepository) ListByUser(ctx context.Context, userID uint, options PositionListOptions) ([]model.Position, error) {
	query := r.reader.WithContext(ctx).Where("user_id = ?", userID)
	if options.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	query = query.Order("created_at DESC, id DESC")
	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var positions []model.Position
	if err := query.Find(&positions).Error; err != nil {
		logger.WithFields(logger.Fields{
			"repo":    "PositionRepository",
			"op":      "ListByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to list positions")
		return nil, err
	}

	return positions, nil
}

func reload(tx *gorm.DB, id uint) (*model.Position, error) {
	var position model.Position
	if err := tx.First(&position, id).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

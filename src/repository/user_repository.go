package repository

import (
	"context"
	"errors"

	"positionledger/src/apperror"
	"positionledger/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrUserVersionConflict means the wallet moved between read and write.
var ErrUserVersionConflict = apperror.New(apperror.KindConflict, "USER_VERSION_CONFLICT", "user wallet changed concurrently, retry the request")

var ErrUserNotFound = apperror.New(apperror.KindNotFound, "USER_NOT_FOUND", "user not found")

var ErrSymbolExists = apperror.New(apperror.KindValidation, "SYMBOL_EXISTS", "symbol already exists")

type GormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID loads a user with its watchlist. Returns (nil, nil) if not found.
func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Preload("Symbols").
		First(&u, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(logger.Fields{
			"repo":    "UserRepository",
			"op":      "FindByID",
			"user_id": id,
		}).WithError(err).Error("Failed to fetch user")
		return nil, err
	}

	return &u, nil
}

// UpdateWalletMargin overwrites wallet and margin only if the row still carries
// user.Version, bumping the version on success.
func (r *GormUserRepository) UpdateWalletMargin(
	ctx context.Context,
	user *model.User,
	wallet decimal.Decimal,
	margin decimal.Decimal,
) (*model.User, error) {

	fields := logger.Fields{
		"repo":    "UserRepository",
		"op":      "UpdateWalletMargin",
		"user_id": user.ID,
		"version": user.Version,
	}

	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]interface{}{
			"wallet":  wallet,
			"margin":  margin,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		logger.WithFields(fields).WithError(res.Error).Error("Failed to update wallet")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		logger.WithFields(fields).Warn("Wallet update lost compare-and-swap")
		return nil, ErrUserVersionConflict
	}

	logger.WithFields(fields).Debug("Wallet and margin updated")
	return r.FindByID(ctx, user.ID)
}

// CreditWallet atomically adds amount to the wallet. The increment happens in
// the database so it composes with concurrent writers.
func (r *GormUserRepository) CreditWallet(ctx context.Context, userID uint, amount decimal.Decimal) (*model.User, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"wallet":  gorm.Expr("wallet + ?", amount),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		logger.WithFields(logger.Fields{
			"repo":    "UserRepository",
			"op":      "CreditWallet",
			"user_id": userID,
		}).WithError(res.Error).Error("Failed to credit wallet")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound.Withf("user #%d not found", userID)
	}

	return r.FindByID(ctx, userID)
}

// AddSymbol puts symbol on the user's watchlist.
func (r *GormUserRepository) AddSymbol(ctx context.Context, userID uint, symbol string) error {
	err := r.db.WithContext(ctx).Create(&model.WatchSymbol{UserID: userID, Symbol: symbol}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSymbolExists
	}
	return err
}

// RemoveSymbol deletes symbol from the watchlist and reports whether it was there.
func (r *GormUserRepository) RemoveSymbol(ctx context.Context, userID uint, symbol string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&model.WatchSymbol{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

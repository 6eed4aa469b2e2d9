package repository

import (
	"context"

	"positionledger/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TransactionRepository is append-only: there is no update or delete.
type TransactionRepository struct {
	db     *gorm.DB
	reader *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db, reader: db}
}

// WithReader routes ListByUser to a separate (replica) connection.
func (r *TransactionRepository) WithReader(reader *gorm.DB) *TransactionRepository {
	if reader == nil {
		reader = r.db
	}
	return &TransactionRepository{db: r.db, reader: reader}
}

func (r *TransactionRepository) Append(ctx context.Context, txn *model.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		logger.WithFields(logger.Fields{
			"repo":    "TransactionRepository",
			"op":      "Append",
			"user_id": txn.UserID,
			"type":    txn.TransactionType,
		}).WithError(err).Error("Failed to append transaction")
		return err
	}
	return nil
}

// ListByUser returns the user's transactions, newest first. limit <= 0 means 50.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var txns []model.Transaction
	err := r.reader.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}

	return txns, nil
}

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

// ErrPaymentNotPending covers both an unknown order id and one that was already consumed.
var ErrPaymentNotPending = apperror.New(apperror.KindConflict, "PAYMENT_NOT_PENDING", "order id is out of scope, or payment already verified")

// CreditOutcome is what ConsumeAndCredit committed.
type CreditOutcome struct {
	Order    *model.PaymentOrder
	User     *model.User
	Credited decimal.Decimal
}

type PaymentOrderRepository struct {
	db *gorm.DB
}

func NewPaymentOrderRepository(db *gorm.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

func (r *PaymentOrderRepository) Create(ctx context.Context, order *model.PaymentOrder) error {
	fields := logger.Fields{
		"repo":     "PaymentOrderRepository",
		"op":       "Create",
		"order_id": order.OrderID,
		"user_id":  order.UserID,
	}

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to create payment order")
		return err
	}

	logger.WithFields(fields).Info("Payment order stored")
	return nil
}

// FindByOrderID returns (nil, nil) if the gateway order id is unknown.
func (r *PaymentOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	var order model.PaymentOrder
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ConsumeAndCredit flips is_success from false to true for orderID with a single
// conditional UPDATE and, in the same transaction, credits amount*creditRate to
// the owner's wallet. Only one caller per order id can ever get past the UPDATE.
func (r *PaymentOrderRepository) ConsumeAndCredit(
	ctx context.Context,
	orderID string,
	creditRate decimal.Decimal,
) (*CreditOutcome, error) {

	fields := logger.Fields{
		"repo":     "PaymentOrderRepository",
		"op":       "ConsumeAndCredit",
		"order_id": orderID,
	}
	logger.WithFields(fields).Debug("Consuming payment order")

	var outcome CreditOutcome

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PaymentOrder{}).
			Where("order_id = ? AND is_success = ?", orderID, false).
			Updates(map[string]interface{}{
				"is_success": true,
				"status":     "paid",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPaymentNotPending
		}

		var order model.PaymentOrder
		if err := tx.Where("order_id = ?", orderID).First(&order).Error; err != nil {
			return err
		}

		credited := order.Amount.Mul(creditRate)
		user, err := NewUserRepository(tx).CreditWallet(ctx, order.UserID, credited)
		if err != nil {
			return err
		}

		outcome = CreditOutcome{Order: &order, User: user, Credited: credited}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPaymentNotPending) {
			logger.WithFields(fields).Warn("Payment order already consumed or unknown")
		} else {
			logger.WithFields(fields).WithError(err).Error("Failed to consume payment order")
		}
		return nil, err
	}

	logger.WithFields(fields).WithFields(logger.Fields{
		"user_id":  outcome.User.ID,
		"credited": outcome.Credited.String(),
	}).Info("Payment order consumed and wallet credited")

	return &outcome, nil
}

package ledger

import (
	"context"
	"errors"
	"fmt"

	"positionledger/src/apperror"
	"positionledger/src/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// ErrNotRecorded reports a wallet change that stands without its transaction.
var ErrNotRecorded = apperror.New(apperror.KindInternal, "LEDGER_NOT_RECORDED", "wallet updated, transaction log entry was not recorded")

// NotRecorded tags err as ErrNotRecorded unless it already is.
func NotRecorded(err error) error {
	if err == nil || errors.Is(err, ErrNotRecorded) {
		return err
	}
	return ErrNotRecorded.Wrap(err)
}

type appender interface {
	Append(ctx context.Context, txn *model.Transaction) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]model.Transaction, error)
}

// Ledger writes wallet-affecting events. A failed append never undoes the
// wallet change it describes; callers downgrade the error to a warning.
type Ledger struct {
	store appender
}

func New(store appender) *Ledger {
	return &Ledger{store: store}
}

// Record appends one entry for a signed wallet delta: positive is a Credit,
// negative a Debit. A zero delta writes nothing and returns (nil, nil).
func (l *Ledger) Record(ctx context.Context, userID uint, delta decimal.Decimal, source string) (*model.Transaction, error) {
	if delta.IsZero() {
		return nil, nil
	}

	txn := &model.Transaction{
		Reference:       uuid.NewString(),
		UserID:          userID,
		Amount:          delta.Abs(),
		TransactionType: model.TransactionTypeCredit,
		Source:          source,
	}
	if delta.IsNegative() {
		txn.TransactionType = model.TransactionTypeDebit
	}

	if err := l.store.Append(ctx, txn); err != nil {
		logger.WithFields(logger.Fields{
			"component": "Ledger",
			"user_id":   userID,
			"amount":    delta.String(),
			"source":    source,
		}).WithError(err).Warn("Ledger append failed, wallet change stands")
		return nil, ErrNotRecorded.Wrap(fmt.Errorf("append %s transaction: %w", txn.TransactionType, err))
	}

	return txn, nil
}

// History lists the user's transactions, newest first.
func (l *Ledger) History(ctx context.Context, userID uint, limit int) ([]model.Transaction, error) {
	return l.store.ListByUser(ctx, userID, limit)
}

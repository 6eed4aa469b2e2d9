package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"positionledger/src/apperror"
	"positionledger/src/database"
	"positionledger/src/ledger"
	"positionledger/src/model"
	"positionledger/src/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test_key_secret"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	db         *gorm.DB
	users      *repository.GormUserRepository
	orders     *repository.PaymentOrderRepository
	txns       *repository.TransactionRepository
	exceptions *repository.ExceptionRepository
	service    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:       database.DriverSQLite,
		SQLitePath:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		GormLogLevel: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		db:         db,
		users:      repository.NewUserRepository(db),
		orders:     repository.NewPaymentOrderRepository(db),
		txns:       repository.NewTransactionRepository(db),
		exceptions: repository.NewExceptionRepository(db),
	}
	f.service = NewService(testSecret, d("0.01"), f.orders, ledger.New(f.txns)).
		WithExceptions(f.exceptions)
	return f
}

func (f *fixture) seed(t *testing.T, wallet, amount string) (*model.User, *model.PaymentOrder) {
	t.Helper()
	ctx := context.Background()

	user := &model.User{Mobile: uuid.NewString()[:12], Wallet: d(wallet)}
	require.NoError(t, f.users.Create(ctx, user))

	order := &model.PaymentOrder{
		OrderID:  "order_" + uuid.NewString()[:8],
		UserID:   user.ID,
		Amount:   d(amount),
		Currency: "INR",
		Status:   "created",
	}
	require.NoError(t, f.orders.Create(ctx, order))
	return user, order
}

func signed(orderID, paymentID string) VerifyRequest {
	return VerifyRequest{OrderID: orderID, PaymentID: paymentID, Signature: Sign(testSecret, orderID, paymentID)}
}

func TestVerifyAndCredit_CreditsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user, order := f.seed(t, "100", "50000")

	result, err := f.service.VerifyAndCredit(ctx, signed(order.OrderID, "pay_1"))
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.True(t, result.CreditedAmount.Equal(d("500")), "credited=%s", result.CreditedAmount)
	assert.True(t, result.User.Wallet.Equal(d("600")), "wallet=%s", result.User.Wallet)
	assert.True(t, result.Order.IsSuccess)

	require.NotNil(t, result.Transaction)
	assert.Equal(t, model.TransactionTypeCredit, result.Transaction.TransactionType)
	assert.Equal(t, model.TransactionSourcePayment, result.Transaction.Source)
	assert.True(t, result.Transaction.Amount.Equal(d("500")))

	// replaying the same callback is a conflict and leaves the wallet alone
	_, err = f.service.VerifyAndCredit(ctx, signed(order.OrderID, "pay_1"))
	assert.ErrorIs(t, err, ErrAlreadyVerifiedOrUnknownOrder)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Wallet.Equal(d("600")))

	txns, err := f.txns.ListByUser(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestVerifyAndCredit_TamperedSignatureMutatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user, order := f.seed(t, "100", "50000")

	req := signed(order.OrderID, "pay_1")
	req.PaymentID = "pay_2"

	_, err := f.service.VerifyAndCredit(ctx, req)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	stored, err := f.orders.FindByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.False(t, stored.IsSuccess)

	reloaded, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Wallet.Equal(d("100")))

	// a valid signature still works afterwards
	_, err = f.service.VerifyAndCredit(ctx, signed(order.OrderID, "pay_1"))
	assert.NoError(t, err)
}

func TestVerifyAndCredit_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.VerifyAndCredit(context.Background(), signed("order_missing", "pay_1"))
	assert.ErrorIs(t, err, ErrAlreadyVerifiedOrUnknownOrder)
	assert.ErrorIs(t, err, repository.ErrPaymentNotPending)
}

func TestVerifyAndCredit_RejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.VerifyAndCredit(context.Background(), VerifyRequest{OrderID: "order_1"})
	assert.ErrorIs(t, err, ErrInvalidPaymentPayload)

	unconfigured := NewService("", d("0.01"), f.orders, nil)
	_, err = unconfigured.VerifyAndCredit(context.Background(), VerifyRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: Sign("", "order_1", "pay_1"),
	})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestVerifyAndCredit_ConcurrentCallbacksCreditOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user, order := f.seed(t, "0", "1000")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.VerifyAndCredit(ctx, signed(order.OrderID, "pay_x"))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrAlreadyVerifiedOrUnknownOrder) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Wallet.Equal(d("10")), "wallet=%s", stored.Wallet)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, uint, decimal.Decimal, string) (*model.Transaction, error) {
	return nil, errors.New("ledger offline")
}

func TestVerifyAndCredit_LedgerFailureKeepsCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.service.ledger = failingRecorder{}
	user, order := f.seed(t, "0", "2000")

	result, err := f.service.VerifyAndCredit(ctx, signed(order.OrderID, "pay_1"))
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "LEDGER_NOT_RECORDED", result.Warnings[0].Code)
	assert.NotContains(t, result.Warnings[0].Message, "ledger offline")
	assert.Nil(t, result.Transaction)

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Wallet.Equal(d("20")))

	excs, err := f.exceptions.ListRecent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, excs, 1)
	assert.Equal(t, "payment", excs[0].Service)
}

type stubGateway struct {
	order    *GatewayOrder
	err      error
	amount   decimal.Decimal
	currency string
	receipt  string
}

func (g *stubGateway) CreateOrder(_ context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error) {
	g.amount, g.currency, g.receipt = amount, currency, receipt
	return g.order, g.err
}

func TestCreateOrder_StoresPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user, _ := f.seed(t, "0", "1")

	gw := &stubGateway{order: &GatewayOrder{ID: "order_gw_1", Status: "created"}}
	f.service.WithGateway(gw, "INR")

	order, err := f.service.CreateOrder(ctx, user, model.CreatePaymentOrderPayload{Amount: d("50000")})
	require.NoError(t, err)
	assert.Equal(t, "order_gw_1", order.OrderID)
	assert.Equal(t, user.ID, order.UserID)
	assert.False(t, order.IsSuccess)
	assert.Equal(t, gw.receipt, order.Receipt)
	assert.True(t, gw.amount.Equal(d("50000")))
	assert.Equal(t, "INR", gw.currency)

	// the stored order is what a later callback consumes
	result, err := f.service.VerifyAndCredit(ctx, signed("order_gw_1", "pay_9"))
	require.NoError(t, err)
	assert.True(t, result.CreditedAmount.Equal(d("500")))
}

func TestCreateOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := &model.User{ID: 1}

	_, err := f.service.CreateOrder(ctx, user, model.CreatePaymentOrderPayload{Amount: d("100")})
	assert.ErrorIs(t, err, ErrNotConfigured, "no gateway wired")

	gw := &stubGateway{order: &GatewayOrder{ID: "order_x"}}
	f.service.WithGateway(gw, "")

	for _, amount := range []string{"0", "-5", "10.5"} {
		_, err = f.service.CreateOrder(ctx, user, model.CreatePaymentOrderPayload{Amount: d(amount)})
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}

	gw.err = errors.New("gateway down")
	_, err = f.service.CreateOrder(ctx, user, model.CreatePaymentOrderPayload{Amount: d("100")})
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}

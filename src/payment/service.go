package payment

import (
	"context"
	"errors"
	"strings"

	"positionledger/src/apperror"
	"positionledger/src/controller"
	"positionledger/src/ledger"
	"positionledger/src/metrics"
	"positionledger/src/model"
	"positionledger/src/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrSignatureMismatch = apperror.New(apperror.KindValidation, "SIGNATURE_MISMATCH", "Payment verification failed")
	// ErrAlreadyVerifiedOrUnknownOrder is deliberately one error: the
	// conditional update cannot tell an unknown order from a consumed one.
	ErrAlreadyVerifiedOrUnknownOrder = apperror.New(apperror.KindConflict, "ORDER_ALREADY_VERIFIED_OR_UNKNOWN", "OrderId is out of scope, or payment already verified")
	ErrInvalidPaymentPayload         = apperror.New(apperror.KindValidation, "INVALID_PAYMENT_PAYLOAD", "order_id and payment_id are required")
	ErrInvalidAmount                 = apperror.New(apperror.KindValidation, "INVALID_AMOUNT", "amount must be a positive whole number of minor units")
	ErrNotConfigured                 = apperror.New(apperror.KindInternal, "PAYMENT_NOT_CONFIGURED", "payment gateway is not configured")
)

const serviceName = "payment"

type orderStore interface {
	Create(ctx context.Context, order *model.PaymentOrder) error
	ConsumeAndCredit(ctx context.Context, orderID string, creditRate decimal.Decimal) (*repository.CreditOutcome, error)
}

type gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error)
}

type recorder interface {
	Record(ctx context.Context, userID uint, delta decimal.Decimal, source string) (*model.Transaction, error)
}

// VerifyRequest is a gateway callback plus its x-razorpay-signature header.
type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
}

type VerifyResult struct {
	User           *model.User
	Order          *model.PaymentOrder
	CreditedAmount decimal.Decimal
	Transaction    *model.Transaction
	Warnings       []apperror.Warning
}

// Service reconciles wallet balances against gateway-verified payments.
type Service struct {
	secret     string
	creditRate decimal.Decimal
	currency   string

	orders     orderStore
	ledger     recorder
	gateway    gateway
	exceptions controller.ExceptionWriter
	metrics    *metrics.Metrics
}

func NewService(secret string, creditRate decimal.Decimal, orders orderStore, ledger recorder) *Service {
	return &Service{
		secret:     secret,
		creditRate: creditRate,
		currency:   "INR",
		orders:     orders,
		ledger:     ledger,
	}
}

func (s *Service) WithGateway(gw gateway, currency string) *Service {
	s.gateway = gw
	if currency != "" {
		s.currency = currency
	}
	return s
}

func (s *Service) WithExceptions(exceptions controller.ExceptionWriter) *Service {
	s.exceptions = exceptions
	return s
}

func (s *Service) WithMetrics(mt *metrics.Metrics) *Service {
	s.metrics = mt
	return s
}

// VerifyAndCredit checks the gateway signature and, exactly once per order,
// flips the order to paid and credits amount*creditRate to its owner.
func (s *Service) VerifyAndCredit(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	fields := logger.Fields{
		"service":    serviceName,
		"op":         "VerifyAndCredit",
		"order_id":   req.OrderID,
		"payment_id": req.PaymentID,
	}

	if s.secret == "" {
		// An empty key would make every signature forgeable.
		return nil, ErrNotConfigured.Withf("PAYMENT_KEY_SECRET is not set")
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.PaymentID) == "" {
		return nil, ErrInvalidPaymentPayload
	}

	if !VerifySignature(s.secret, req.OrderID, req.PaymentID, req.Signature) {
		logger.WithFields(fields).Warn("Payment signature mismatch")
		s.metrics.PaymentOutcome("signature_mismatch", 0)
		return nil, ErrSignatureMismatch
	}

	outcome, err := s.orders.ConsumeAndCredit(ctx, req.OrderID, s.creditRate)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotPending) {
			s.metrics.PaymentOutcome("not_pending", 0)
			return nil, ErrAlreadyVerifiedOrUnknownOrder.Wrap(err)
		}
		s.metrics.PaymentOutcome("error", 0)
		return nil, apperror.Internal("failed to credit wallet", err)
	}

	credited, _ := outcome.Credited.Float64()
	s.metrics.PaymentOutcome("credited", credited)

	result := &VerifyResult{
		User:           outcome.User,
		Order:          outcome.Order,
		CreditedAmount: outcome.Credited,
	}

	if s.ledger != nil {
		txn, err := s.ledger.Record(ctx, outcome.Order.UserID, outcome.Credited, model.TransactionSourcePayment)
		if err != nil {
			err = ledger.NotRecorded(err)
			result.Warnings = append(result.Warnings, apperror.WarningFrom(err))
			s.metrics.BestEffortFailed("ledger")
			controller.Capture(ctx, s.exceptions, controller.Failure{
				Service: serviceName,
				Module:  "ledger",
				Method:  "VerifyAndCredit",
				UserID:  outcome.Order.UserID,
				Err:     err,
				Context: map[string]interface{}{
					"order_id": req.OrderID,
					"credited": outcome.Credited.String(),
				},
			})
		}
		result.Transaction = txn
	}

	logger.WithFields(fields).WithField("credited", outcome.Credited.String()).Info("Payment verified")
	return result, nil
}

// CreateOrder opens an order on the gateway for user and stores it as pending,
// ready for VerifyAndCredit.
func (s *Service) CreateOrder(ctx context.Context, user *model.User, payload model.CreatePaymentOrderPayload) (*model.PaymentOrder, error) {
	if s.gateway == nil {
		return nil, ErrNotConfigured
	}
	if !payload.Amount.IsPositive() || !payload.Amount.Equal(payload.Amount.Truncate(0)) {
		return nil, ErrInvalidAmount.Withf("amount must be a positive whole number of minor units, got %s", payload.Amount.String())
	}

	receipt := uuid.NewString()
	gwOrder, err := s.gateway.CreateOrder(ctx, payload.Amount, s.currency, receipt)
	if err != nil {
		return nil, apperror.Internal("failed to create gateway order", err)
	}

	order := &model.PaymentOrder{
		OrderID:  gwOrder.ID,
		UserID:   user.ID,
		Amount:   payload.Amount,
		Currency: s.currency,
		Receipt:  receipt,
		Status:   gwOrder.Status,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperror.Internal("failed to store payment order", err)
	}

	return order, nil
}

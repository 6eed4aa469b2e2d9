package handler

import (
	"context"
	"net/http"

	"positionledger/src/apperror"
	"positionledger/src/auth"
	"positionledger/src/model"
	"positionledger/src/payment"
)

// SignatureHeader carries the gateway's HMAC of "order_id|payment_id".
const SignatureHeader = "x-razorpay-signature"

type paymentService interface {
	VerifyAndCredit(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error)
	CreateOrder(ctx context.Context, user *model.User, payload model.CreatePaymentOrderPayload) (*model.PaymentOrder, error)
}

// VerifyPaymentHandler handles the gateway callback POST /user/verifyorder.
// It is authenticated by the signature header, not by a user token.
func VerifyPaymentHandler(svc paymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload model.VerifyPaymentPayload
		if err := decodePayload(r, &payload); err != nil {
			writeError(w, r, err)
			return
		}

		result, err := svc.VerifyAndCredit(r.Context(), payment.VerifyRequest{
			OrderID:   payload.OrderID,
			PaymentID: payload.PaymentID,
			Signature: r.Header.Get(SignatureHeader),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		warnings := result.Warnings
		if warnings == nil {
			warnings = []apperror.Warning{}
		}
		writeOK(w, "Payment has been verified", map[string]interface{}{
			"user":        result.User,
			"credited":    result.CreditedAmount,
			"transaction": result.Transaction,
			"warnings":    warnings,
		})
	}
}

// CreatePaymentOrderHandler handles POST /user/createorder.
func CreatePaymentOrderHandler(svc paymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			unauthorized(w, r)
			return
		}

		var payload model.CreatePaymentOrderPayload
		if err := decodePayload(r, &payload); err != nil {
			writeError(w, r, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), user, payload)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeOK(w, http.StatusText(http.StatusOK), map[string]interface{}{"order": order})
	}
}

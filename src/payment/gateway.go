package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// GatewayOrder is the order object the gateway returns.
type GatewayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type createOrderBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// GatewayClient creates orders on the payment gateway with basic auth.
// Order creation is not idempotent, so requests are never retried.
type GatewayClient struct {
	keyID     string
	keySecret string
	http      *resty.Client
}

func NewGatewayClient(keyID, keySecret, baseURL string) *GatewayClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetBasicAuth(keyID, keySecret)

	return &GatewayClient{keyID: keyID, keySecret: keySecret, http: httpClient}
}

// CreateOrder registers an order of amount (minor units) on the gateway.
func (c *GatewayClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error) {
	fields := logger.Fields{
		"component": "GatewayClient",
		"op":        "CreateOrder",
		"amount":    amount.String(),
		"receipt":   receipt,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createOrderBody{Amount: amount.IntPart(), Currency: currency, Receipt: receipt}).
		Post("/v1/orders")
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Gateway request failed")
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	raw := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		var gErr gatewayError
		if json.Unmarshal(raw, &gErr) == nil && gErr.Error.Description != "" {
			return nil, fmt.Errorf("gateway HTTP %d: %s: %s", resp.StatusCode(), gErr.Error.Code, gErr.Error.Description)
		}
		return nil, fmt.Errorf("gateway HTTP %d: %s", resp.StatusCode(), string(raw))
	}

	var order GatewayOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode gateway order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("gateway returned an order without id: %s", string(raw))
	}

	logger.WithFields(fields).WithField("order_id", order.ID).Info("Gateway order created")
	return &order, nil
}

package payment

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	KeyID      string `envconfig:"PAYMENT_KEY_ID"`
	KeySecret  string `envconfig:"PAYMENT_KEY_SECRET"`
	GatewayURL string `envconfig:"PAYMENT_GATEWAY_URL" default:"https://api.razorpay.com"`
	Currency   string `envconfig:"PAYMENT_CURRENCY" default:"INR"`
	// CreditRate converts the order amount into the wallet credit. Orders are
	// created in paise and 0.01 is the observed production factor.
	CreditRate string `envconfig:"PAYMENT_CREDIT_RATE" default:"0.01"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// Rate parses CreditRate.
func (c Config) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.CreditRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid PAYMENT_CREDIT_RATE %q: %w", c.CreditRate, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("PAYMENT_CREDIT_RATE must not be negative, got %s", c.CreditRate)
	}
	return rate, nil
}

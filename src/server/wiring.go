package server

import (
	"context"
	"fmt"

	"positionledger/src/auth"
	"positionledger/src/ledger"
	"positionledger/src/lifecycle"
	"positionledger/src/margin"
	"positionledger/src/metrics"
	"positionledger/src/payment"
	"positionledger/src/repository"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Settings groups the per-package configuration the services are built from.
type Settings struct {
	Server    Config
	Lifecycle lifecycle.Config
	Payment   payment.Config
	Auth      auth.Config
}

// LoadSettings reads every package's environment configuration.
func LoadSettings() Settings {
	return Settings{
		Server:    *GetConfig(),
		Lifecycle: lifecycle.GetConfig(),
		Payment:   payment.GetConfig(),
		Auth:      auth.GetConfig(),
	}
}

// Wire builds the services over main (writes) and reader (list endpoints) and
// registers their metrics on reg.
func Wire(main, reader *gorm.DB, settings Settings, reg prometheus.Registerer) (Dependencies, error) {
	if reader == nil {
		reader = main
	}

	if settings.Auth.Secret == "" {
		return Dependencies{}, fmt.Errorf("JWT_SECRET is required")
	}

	creditRate, err := settings.Payment.Rate()
	if err != nil {
		return Dependencies{}, err
	}

	cache, err := lifecycle.NewPositionCache(settings.Lifecycle)
	if err != nil {
		return Dependencies{}, err
	}

	mt := metrics.NewMetrics(reg)

	positions := repository.NewPositionRepository(main).WithReader(reader)
	users := repository.NewUserRepository(main)
	txns := repository.NewTransactionRepository(main).WithReader(reader)
	exceptions := repository.NewExceptionRepository(main)
	book := ledger.New(txns)

	manager := lifecycle.NewManager(positions, users, margin.NewCalculator(margin.DefaultLeverageTable()), book).
		WithCache(cache).
		WithExceptions(exceptions).
		WithMetrics(mt).
		WithRetries(settings.Lifecycle.UserUpdateRetries)

	if settings.Payment.KeySecret == "" {
		logger.Warn("PAYMENT_KEY_SECRET is not set, payment verification will be rejected")
	}
	payments := payment.NewService(settings.Payment.KeySecret, creditRate, repository.NewPaymentOrderRepository(main), book).
		WithExceptions(exceptions).
		WithMetrics(mt)
	if settings.Payment.KeyID != "" && settings.Payment.GatewayURL != "" {
		gw := payment.NewGatewayClient(settings.Payment.KeyID, settings.Payment.KeySecret, settings.Payment.GatewayURL)
		payments.WithGateway(gw, settings.Payment.Currency)
	}

	return Dependencies{
		Positions: manager,
		Payments:  payments,
		Ledger:    book,
		Users:     users,
		Tokens:    auth.NewTokenManager(settings.Auth.Secret, settings.Auth.Issuer, settings.Auth.TTL),
		Origins:   settings.Server.AllowedOrigins,
		Ping: func(ctx context.Context) error {
			sqlDB, err := main.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, nil
}

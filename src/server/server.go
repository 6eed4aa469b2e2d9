package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"positionledger/src/auth"
	"positionledger/src/handler"
	"positionledger/src/ledger"
	"positionledger/src/lifecycle"
	"positionledger/src/metrics"
	"positionledger/src/payment"
	"positionledger/src/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	logger "github.com/sirupsen/logrus"
)

// Dependencies are the services the HTTP surface is wired to.
type Dependencies struct {
	Positions *lifecycle.Manager
	Payments  *payment.Service
	Ledger    *ledger.Ledger
	Users     *repository.GormUserRepository
	Tokens    *auth.TokenManager
	// Ping reports database health for /healthcheck; nil skips the check.
	Ping func(ctx context.Context) error
	// Origins allowed by CORS; empty leaves CORS off.
	Origins []string
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if len(deps.Origins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   deps.Origins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", handler.SignatureHeader},
			AllowCredentials: true,
		}).Handler)
	}

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ping != nil {
			if err := deps.Ping(r.Context()); err != nil {
				logger.WithError(err).Error("healthcheck: database unreachable")
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/user", func(r chi.Router) {
		// Gateway callback, authenticated by its HMAC signature.
		r.Post("/verifyorder", handler.VerifyPaymentHandler(deps.Payments))

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(deps.Tokens, deps.Users))

			r.Get("/", handler.ProfileHandler())
			r.Post("/order", handler.OpenPositionHandler(deps.Positions))
			r.Get("/order", handler.ListPositionsHandler(deps.Positions))
			r.Get("/order/{id}", handler.GetPositionHandler(deps.Positions))
			r.Post("/close-position", handler.ClosePositionHandler(deps.Positions))

			r.Post("/createorder", handler.CreatePaymentOrderHandler(deps.Payments))
			r.Get("/transactions", handler.TransactionsHandler(deps.Ledger))

			r.Post("/symbol", handler.AddSymbolHandler(deps.Users))
			r.Delete("/symbol", handler.RemoveSymbolHandler(deps.Users))
		})
	})

	return r
}

// StartServer serves h on port until SIGINT or SIGTERM, then drains gracefully.
func StartServer(port string, h http.Handler) {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}

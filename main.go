package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"positionledger/src/database"
	"positionledger/src/server"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.InfoLevel
	}

	logger.SetLevel(level)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	cfg := server.GetConfig()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	deps, err := server.Wire(database.MainDB, database.ReadOnlyDB, server.LoadSettings(), prometheus.DefaultRegisterer)
	if err != nil {
		logger.WithError(err).Fatal("Failed to wire services")
	}

	logger.WithField("app", cfg.AppName).Info("Starting position ledger")
	server.StartServer(cfg.Port, server.NewRouter(deps))
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", server.GetConfig().AppName))
		//nolint
		time.Sleep(time.Second * 5)
	}
}

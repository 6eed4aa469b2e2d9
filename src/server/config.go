package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port    string `envconfig:"SERVER_PORT" default:"9898"`
	AppName string `envconfig:"APP_NAME" default:"positionledger"`
	// Comma separated; empty disables CORS handling.
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

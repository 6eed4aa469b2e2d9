package lifecycle

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Cache             string        `envconfig:"POSITION_CACHE" default:"memory"` // "memory" or "redis"
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL          time.Duration `envconfig:"POSITION_CACHE_TTL" default:"10m"`
	UserUpdateRetries int           `envconfig:"USER_UPDATE_RETRIES" default:"3"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv. The LUIS names match the keys
// operators already keep in their .env files.
const (
	EnvLuisAppID       = "LuisAppId"
	EnvLuisAPIKey      = "LuisAPIKey"
	EnvLuisAPIHostName = "LuisAPIHostName"
	EnvPort            = "PORT"
	EnvRedisAddr       = "REDIS_ADDR"
	EnvRedisPassword   = "REDIS_PASSWORD"
	EnvOTLPEndpoint    = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. With no arguments it reads ./.env and
// ignores its absence; explicitly named files must exist.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return godotenv.Load(files...)
}

// ApplyEnv overrides manifest values with environment variables. A nil
// lookup reads the process environment.
func (c *BotConfig) ApplyEnv(lookup LookupFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&c.NLU.LUIS.AppID, EnvLuisAppID)
	set(&c.NLU.LUIS.APIKey, EnvLuisAPIKey)
	set(&c.NLU.LUIS.Host, EnvLuisAPIHostName)
	set(&c.StateStore.Redis.Addr, EnvRedisAddr)
	set(&c.StateStore.Redis.Password, EnvRedisPassword)
	set(&c.Telemetry.Endpoint, EnvOTLPEndpoint)

	if port, ok := lookup(EnvPort); ok && port != "" {
		c.Server.Addr = ":" + port
	}
}

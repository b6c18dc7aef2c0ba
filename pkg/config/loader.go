package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a manifest file and resolves it with Parse.
func LoadConfig(filename string) (*BotConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Parse validates a manifest against the schema, decodes it, applies
// environment overrides and defaults, then checks cross-field rules.
func Parse(data []byte, lookup LookupFunc) (*BotConfig, error) {
	if err := ValidateBotConfig(data); err != nil {
		return nil, err
	}

	var manifest BotConfigK8s
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &manifest.Spec
	cfg.Name = manifest.Metadata.Name
	if cfg.Name == "" {
		cfg.Name = DefaultServiceName
	}
	cfg.ApplyEnv(lookup)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve is used when no manifest file is given: defaults plus environment.
func Resolve(lookup LookupFunc) (*BotConfig, error) {
	cfg := &BotConfig{Name: DefaultServiceName}
	cfg.ApplyEnv(lookup)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks rules the schema cannot express.
func (c *BotConfig) Validate() error {
	if c.NLU.Type == NLUTypeKeyword && len(c.NLU.Keywords) == 0 {
		return fmt.Errorf("nlu: keyword recognizer needs at least one rule")
	}
	if c.StateStore.Type == StoreTypeRedis && c.StateStore.Redis.Addr == "" {
		return fmt.Errorf("stateStore: redis address is required")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint is required when enabled")
	}
	if r := c.Telemetry.Ratio(); r < 0 || r > 1 {
		return fmt.Errorf("telemetry: sampleRatio %v outside [0, 1]", r)
	}
	if c.Metrics.IsEnabled() && c.Metrics.Addr == c.Server.Addr {
		return fmt.Errorf("metrics: addr %q collides with server addr", c.Metrics.Addr)
	}
	return nil
}

// Package config loads the bot service manifest.
//
// The manifest is a K8s-style YAML document (apiVersion, kind, metadata, spec)
// validated against an embedded JSON schema before it is decoded. Values from
// the environment, including a .env file, override what the manifest sets.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Manifest identity.
const (
	APIVersion = "botservice.jagmitg.dev/v1alpha1"
	KindBot    = "BotConfig"
)

// NLU backends.
const (
	NLUTypeLUIS    = "luis"
	NLUTypeKeyword = "keyword"
	NLUTypeNone    = "none"
)

// State store backends.
const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)

// BotConfigK8s is the on-disk manifest.
type BotConfigK8s struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       BotConfig         `yaml:"spec"`
}

// BotConfig is the resolved service configuration.
type BotConfig struct {
	Logging    *LoggingConfigSpec `yaml:"logging,omitempty"`
	NLU        NLUConfig          `yaml:"nlu"`
	StateStore StateStoreConfig   `yaml:"stateStore"`
	Server     ServerConfig       `yaml:"server"`
	Metrics    MetricsConfig      `yaml:"metrics"`
	Telemetry  TelemetryConfig    `yaml:"telemetry"`
	Content    ContentConfig      `yaml:"content"`

	// Name is copied from metadata.name.
	Name string `yaml:"-"`
}

// NLUConfig selects and configures the intent recognizer.
type NLUConfig struct {
	Type     string        `yaml:"type,omitempty"`
	MinScore float64       `yaml:"minScore,omitempty"`
	LUIS     LUISConfig    `yaml:"luis,omitempty"`
	Keywords []KeywordRule `yaml:"keywords,omitempty"`
}

// LUISConfig holds the LUIS application credentials.
type LUISConfig struct {
	AppID   string   `yaml:"appId,omitempty"`
	APIKey  string   `yaml:"apiKey,omitempty"`
	Host    string   `yaml:"host,omitempty"`
	Slot    string   `yaml:"slot,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// Configured reports whether all three credentials are set.
func (c LUISConfig) Configured() bool {
	return c.AppID != "" && c.APIKey != "" && c.Host != ""
}

// KeywordRule maps phrases to an intent for the keyword recognizer.
type KeywordRule struct {
	Intent  string   `yaml:"intent"`
	Phrases []string `yaml:"phrases"`
}

// StateStoreConfig selects where dialog state and profiles live.
type StateStoreConfig struct {
	Type  string      `yaml:"type,omitempty"`
	Redis RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	Addr       string   `yaml:"addr,omitempty"`
	Password   string   `yaml:"password,omitempty"`
	Database   int      `yaml:"database,omitempty"`
	TTL        Duration `yaml:"ttl,omitempty"`
	ProfileTTL Duration `yaml:"profileTTL,omitempty"`
	Prefix     string   `yaml:"prefix,omitempty"`
}

// ServerConfig configures the HTTP channel adapter.
type ServerConfig struct {
	Addr         string          `yaml:"addr,omitempty"`
	ReadTimeout  Duration        `yaml:"readTimeout,omitempty"`
	WriteTimeout Duration        `yaml:"writeTimeout,omitempty"`
	MaxBodyBytes int64           `yaml:"maxBodyBytes,omitempty"`
	RateLimit    RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// RateLimitConfig is a per-conversation token bucket. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
}

// Enabled reports whether a limit is configured.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// IsEnabled treats an unset flag as enabled.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool              `yaml:"enabled,omitempty"`
	Endpoint    string            `yaml:"endpoint,omitempty"`
	ServiceName string            `yaml:"serviceName,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	// SampleRatio is the fraction of new traces kept. Unset means all.
	SampleRatio *float64 `yaml:"sampleRatio,omitempty"`
}

// Ratio returns the configured sample ratio, defaulting to 1.
func (c TelemetryConfig) Ratio() float64 {
	if c.SampleRatio == nil {
		return 1
	}
	return *c.SampleRatio
}

// ContentConfig holds operator-supplied text used in bot replies.
type ContentConfig struct {
	EscalationPhone string `yaml:"escalationPhone,omitempty"`
	EscalationHours string `yaml:"escalationHours,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("30s", "24h").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

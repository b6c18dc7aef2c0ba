package config

import "github.com/jagmitg/botservice/runtime/logger"

// LoggingConfigSpec defines the logging section of the manifest.
type LoggingConfigSpec struct {
	// DefaultLevel is one of trace, debug, info, warn, error.
	DefaultLevel string `yaml:"defaultLevel,omitempty"`

	// Format is "json" or "text".
	Format string `yaml:"format,omitempty"`

	// CommonFields are added to every log entry.
	CommonFields map[string]string `yaml:"commonFields,omitempty"`

	// Modules overrides the level per module, using dot notation
	// (e.g. runtime.dialog). More specific names win.
	Modules []ModuleLoggingConfig `yaml:"modules,omitempty"`
}

// ModuleLoggingConfig configures logging for a specific module.
type ModuleLoggingConfig struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
}

// LogLevel constants for programmatic use.
const (
	LogLevelTrace = "trace"
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// ToLoggerSpec converts the section to the logger package's form.
func (c *LoggingConfigSpec) ToLoggerSpec() *logger.LoggingConfigSpec {
	if c == nil {
		return nil
	}
	spec := &logger.LoggingConfigSpec{
		DefaultLevel: c.DefaultLevel,
		Format:       c.Format,
		CommonFields: c.CommonFields,
	}
	for _, m := range c.Modules {
		spec.Modules = append(spec.Modules, logger.ModuleLoggingSpec{Name: m.Name, Level: m.Level})
	}
	return spec
}

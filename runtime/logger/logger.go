// Package logger provides structured logging for the bot service.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Intent recognition and dialog transition logging
//   - Automatic subscription key and bearer token redaction
//   - Contextual logging keyed by conversation and turn
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	// logOutput is where newly built handlers write. Tests swap it for a buffer.
	logOutput io.Writer = os.Stderr

	// customHandler is set by SetLogger; Configure leaves it in place.
	customHandler slog.Handler
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}

	handler := NewContextHandler(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: level,
	}))
	DefaultLogger = slog.New(handler)
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
// "trace" is accepted as an alias for debug.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	handler := NewContextHandler(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: level,
	}))
	DefaultLogger = slog.New(handler)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetLogger installs a caller-provided handler. A nil logger restores the default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		customHandler = nil
		SetLevel(slog.LevelInfo)
		return
	}
	customHandler = l.Handler()
	DefaultLogger = l
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// IntentRecognized logs the outcome of an intent recognition call.
func IntentRecognized(ctx context.Context, recognizer, intent string, score float64, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"recognizer", recognizer,
		"intent", intent,
		"score", score,
	)
	allAttrs = append(allAttrs, attrs...)
	DebugContext(ctx, "intent recognized", allAttrs...)
}

// DialogTransition logs a dialog stack change (begin, end, replace).
func DialogTransition(ctx context.Context, transition, dialogID string, depth int, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"transition", transition,
		"dialog", dialogID,
		"depth", depth,
	)
	allAttrs = append(allAttrs, attrs...)
	DebugContext(ctx, "dialog transition", allAttrs...)
}

var (
	// sensitivePatterns match credentials that can end up in recognizer URLs and headers.
	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(subscription-key=)[^&\s]+`),
		regexp.MustCompile(`(?i)(Ocp-Apim-Subscription-Key:\s*)\S+`),
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
	}
)

// RedactSensitiveData removes subscription keys and bearer tokens from strings.
//
// Supported patterns:
//   - subscription-key query parameters: value replaced
//   - Ocp-Apim-Subscription-Key headers: value replaced
//   - Bearer tokens: shows only "Bearer [REDACTED]"
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			sub := pattern.FindStringSubmatch(match)
			if len(sub) > 1 {
				return sub[1] + "[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

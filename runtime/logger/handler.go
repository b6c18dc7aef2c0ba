package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
)

const (
	moduleRoot   = "github.com/jagmitg/botservice/"
	loggerModule = "runtime.logger"

	// callerDepth covers the slog frames between a logging call and Enabled.
	callerDepth = 10
)

// redactedKeys are attribute keys whose values may carry a subscription key or token.
var redactedKeys = map[string]bool{
	"url":      true,
	"endpoint": true,
	"error":    true,
}

// ContextHandler enriches records with the conversation fields stored in the
// context, a fixed set of common fields and, when module levels are set, the
// name of the package that logged. Values under redactedKeys are scrubbed
// with RedactSensitiveData.
type ContextHandler struct {
	inner        slog.Handler
	commonFields []slog.Attr
	modules      *ModuleConfig
}

// NewContextHandler wraps inner. commonFields are added to every record.
func NewContextHandler(inner slog.Handler, commonFields ...slog.Attr) *ContextHandler {
	return &ContextHandler{inner: inner, commonFields: commonFields}
}

// NewModuleHandler wraps inner and filters records by the level configured
// for the calling package, e.g. "runtime.dialog" or "internal.bot".
func NewModuleHandler(inner slog.Handler, modules *ModuleConfig, commonFields ...slog.Attr) *ContextHandler {
	return &ContextHandler{inner: inner, commonFields: commonFields, modules: modules}
}

// Enabled implements slog.Handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.modules == nil {
		return h.inner.Enabled(ctx, level)
	}
	return level >= h.modules.LevelFor(callerModule())
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	module := ""
	if h.modules != nil {
		module = moduleForPC(r.PC)
		if r.Level < h.modules.LevelFor(module) {
			return nil
		}
	}

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(h.commonFields...)
	if module != "" {
		out.AddAttrs(slog.String("logger", module))
	}
	for _, key := range allContextKeys {
		if s, ok := ctx.Value(key).(string); ok && s != "" {
			out.AddAttrs(slog.String(string(key), s))
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	c := *h
	c.inner = h.inner.WithAttrs(clean)
	return &c
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.inner = h.inner.WithGroup(name)
	return &c
}

// Unwrap returns the wrapped handler.
func (h *ContextHandler) Unwrap() slog.Handler {
	return h.inner
}

var _ slog.Handler = (*ContextHandler)(nil)

func redactAttr(a slog.Attr) slog.Attr {
	if !redactedKeys[a.Key] {
		return a
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, RedactSensitiveData(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok && err != nil {
			return slog.String(a.Key, RedactSensitiveData(err.Error()))
		}
	}
	return a
}

// moduleCache maps a program counter to its module name.
var moduleCache sync.Map

// callerModule walks the stack to the first frame outside this package.
func callerModule() string {
	var pcs [callerDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	for _, pc := range pcs[:n] {
		if m := moduleForPC(pc); m != "" && m != loggerModule {
			return m
		}
	}
	return ""
}

func moduleForPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	if m, ok := moduleCache.Load(pc); ok {
		return m.(string)
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	m := extractModuleFromFunction(frame.Function)
	moduleCache.Store(pc, m)
	return m
}

// extractModuleFromFunction turns a qualified function name into a module
// name: "github.com/jagmitg/botservice/runtime/dialog.(*Waterfall).Continue"
// becomes "runtime.dialog". Functions outside this module yield "".
func extractModuleFromFunction(fn string) string {
	idx := strings.Index(fn, moduleRoot)
	if idx == -1 {
		return ""
	}
	path := fn[idx+len(moduleRoot):]

	// The package path ends at the first dot after the last slash.
	pkgStart := strings.LastIndex(path, "/") + 1
	if dot := strings.Index(path[pkgStart:], "."); dot != -1 {
		path = path[:pkgStart+dot]
	}
	return strings.ReplaceAll(path, "/", ".")
}

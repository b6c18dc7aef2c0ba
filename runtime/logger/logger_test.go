package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects newly built handlers into a buffer for the test's duration.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	origOutput, origLogger, origCustom := logOutput, DefaultLogger, customHandler
	logOutput = &buf
	customHandler = nil
	t.Cleanup(func() {
		logOutput, DefaultLogger, customHandler = origOutput, origLogger, origCustom
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"TRACE":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetVerbose(t *testing.T) {
	buf := captureOutput(t)

	SetVerbose(true)
	Debug("visible debug")
	SetVerbose(false)
	Debug("hidden debug")

	out := buf.String()
	assert.Contains(t, out, "visible debug")
	assert.NotContains(t, out, "hidden debug")
}

func TestContextFieldsAreLogged(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(slog.LevelInfo)

	ctx := WithLoggingContext(context.Background(), &LoggingFields{
		ConversationID: "conv-1",
		TurnID:         "turn-7",
		DialogID:       "renewDialog",
	})
	InfoContext(ctx, "step executed", "step", "age")

	out := buf.String()
	assert.Contains(t, out, "conversation_id=conv-1")
	assert.Contains(t, out, "turn_id=turn-7")
	assert.Contains(t, out, "dialog_id=renewDialog")
	assert.Contains(t, out, "step=age")
}

func TestExtractLoggingFields(t *testing.T) {
	ctx := WithConversationID(context.Background(), "c")
	ctx = WithStep(ctx, "nameConfirm")
	ctx = WithRequestID(ctx, "r")
	ctx = WithEnvironment(ctx, "test")

	f := ExtractLoggingFields(ctx)
	assert.Equal(t, "c", f.ConversationID)
	assert.Equal(t, "nameConfirm", f.Step)
	assert.Equal(t, "r", f.RequestID)
	assert.Equal(t, "test", f.Environment)
	assert.Empty(t, f.TurnID)

	assert.Equal(t, ctx, WithLoggingContext(ctx, nil))
}

func TestConfigure_JSONWithCommonFields(t *testing.T) {
	buf := captureOutput(t)

	require.NoError(t, Configure(&LoggingConfigSpec{
		DefaultLevel: "info",
		Format:       FormatJSON,
		CommonFields: map[string]string{"service": "botservice"},
	}))
	Info("hello")

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "{"), line)
	assert.Contains(t, line, `"service":"botservice"`)
}

func TestConfigure_RejectsUnknownFormat(t *testing.T) {
	captureOutput(t)
	assert.Error(t, Configure(&LoggingConfigSpec{Format: "xml"}))
	assert.NoError(t, Configure(nil))
}

func TestConfigure_PreservesCustomLogger(t *testing.T) {
	buf := captureOutput(t)
	var custom bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&custom, nil)))

	require.NoError(t, Configure(&LoggingConfigSpec{Format: FormatJSON}))
	Info("to custom")

	assert.Contains(t, custom.String(), "to custom")
	assert.Empty(t, buf.String())
	SetLogger(nil)
}

func TestModuleConfig_LevelFor(t *testing.T) {
	mc := NewModuleConfig(slog.LevelWarn)
	mc.SetModuleLevel("runtime", slog.LevelInfo)
	mc.SetModuleLevel("runtime.nlu", slog.LevelDebug)

	assert.Equal(t, slog.LevelDebug, mc.LevelFor("runtime.nlu"))
	assert.Equal(t, slog.LevelDebug, mc.LevelFor("runtime.nlu.luis"))
	assert.Equal(t, slog.LevelInfo, mc.LevelFor("runtime.dialog"))
	assert.Equal(t, slog.LevelWarn, mc.LevelFor("internal.bot"))

	mc.SetDefaultLevel(slog.LevelError)
	assert.Equal(t, slog.LevelError, mc.LevelFor("server"))
}

func TestExtractModuleFromFunction(t *testing.T) {
	assert.Equal(t, "runtime.dialog",
		extractModuleFromFunction("github.com/jagmitg/botservice/runtime/dialog.(*Waterfall).Continue"))
	assert.Equal(t, "internal.bot",
		extractModuleFromFunction("github.com/jagmitg/botservice/internal/bot.NewMainDialog"))
	assert.Equal(t, "", extractModuleFromFunction("net/http.(*Server).Serve"))
	assert.Equal(t, "", extractModuleFromFunction(""))
}

func TestRedactSensitiveData(t *testing.T) {
	url := "https://westus.api.cognitive.microsoft.com/luis/prediction/v3.0/apps/abc?subscription-key=s3cr3t&query=cash"
	redacted := RedactSensitiveData(url)
	assert.NotContains(t, redacted, "s3cr3t")
	assert.Contains(t, redacted, "subscription-key=[REDACTED]&query=cash")

	assert.Equal(t, "Bearer [REDACTED]", RedactSensitiveData("Bearer abc.def-123"))
	assert.Equal(t, "Ocp-Apim-Subscription-Key: [REDACTED]",
		RedactSensitiveData("Ocp-Apim-Subscription-Key: 0123abcd"))
	assert.Equal(t, "nothing here", RedactSensitiveData("nothing here"))
}

func TestDomainHelpers(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(slog.LevelDebug)

	IntentRecognized(context.Background(), "keyword", "CashPayment", 1, "text_len", 4)
	DialogTransition(context.Background(), "begin", "paymentDialog", 2)

	out := buf.String()
	assert.Contains(t, out, "intent=CashPayment")
	assert.Contains(t, out, "recognizer=keyword")
	assert.Contains(t, out, "transition=begin")
	assert.Contains(t, out, "depth=2")
}

func TestHandlerRedactsSensitiveAttrs(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(slog.LevelInfo)

	Warn("recognizer failed",
		"url", "https://luis.example/apps/a?subscription-key=s3cr3t&query=hi",
		"error", errors.New("dial: Bearer tok.123 rejected"),
		"text", "subscription-key=visible")

	out := buf.String()
	assert.NotContains(t, out, "s3cr3t")
	assert.NotContains(t, out, "tok.123")
	assert.Contains(t, out, "subscription-key=visible", "only listed keys are scrubbed")

	var withAttrs bytes.Buffer
	l := slog.New(NewContextHandler(slog.NewTextHandler(&withAttrs, nil))).With("endpoint", "Bearer abc")
	l.Info("x")
	assert.Contains(t, withAttrs.String(), "Bearer [REDACTED]")
}

func TestModuleHandlerFiltersByModule(t *testing.T) {
	var buf bytes.Buffer
	mc := NewModuleConfig(slog.LevelWarn)
	h := NewModuleHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), mc,
		slog.String("service", "botservice"))

	info := slog.NewRecord(time.Now(), slog.LevelInfo, "dropped", 0)
	require.NoError(t, h.Handle(context.Background(), info))
	warn := slog.NewRecord(time.Now(), slog.LevelWarn, "kept", 0)
	require.NoError(t, h.Handle(context.Background(), warn))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "service=botservice")
}

func TestExtractModuleFromFunction_Closures(t *testing.T) {
	assert.Equal(t, "internal.bot",
		extractModuleFromFunction("github.com/jagmitg/botservice/internal/bot.(*Bot).OnTurn.func1"))
	assert.Equal(t, "cmd.botservice",
		extractModuleFromFunction("github.com/jagmitg/botservice/cmd/botservice.main"))
}

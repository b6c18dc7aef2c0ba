package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jagmitg/botservice/pkg/config"
	"github.com/jagmitg/botservice/runtime/nlu"
	"github.com/jagmitg/botservice/runtime/statestore"
	"github.com/jagmitg/botservice/runtime/version"
)

// clearLUISEnv keeps the developer's .env from switching tests to LUIS.
func clearLUISEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvLuisAppID, config.EnvLuisAPIKey, config.EnvLuisAPIHostName, config.EnvPort} {
		t.Setenv(k, "")
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "botservice version")

	out, err = runCLI(t, "", "version", "--json")
	require.NoError(t, err)
	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info.Version)
}

func TestValidateCmd_Defaults(t *testing.T) {
	clearLUISEnv(t)

	out, err := runCLI(t, "", "validate", "--strict")
	require.NoError(t, err, out)
	assert.Contains(t, out, "ok: botservice")
	assert.Contains(t, out, "nlu keyword")
	assert.NotContains(t, out, "warning")
}

func TestValidateCmd_Manifest(t *testing.T) {
	clearLUISEnv(t)
	path := writeManifest(t, `
apiVersion: botservice.jagmitg.dev/v1alpha1
kind: BotConfig
metadata:
  name: sippi-test
spec:
  nlu:
    type: none
  content:
    escalationPhone: "0300 000 0000"
`)

	out, err := runCLI(t, "", "validate", "--config", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "ok: sippi-test")
}

func TestValidateCmd_BadManifest(t *testing.T) {
	path := writeManifest(t, "apiVersion: nope\nkind: BotConfig\n")

	_, err := runCLI(t, "", "validate", "--config", path)
	require.Error(t, err)
}

func TestEnvFileFlag(t *testing.T) {
	clearLUISEnv(t)
	t.Setenv("BOTSERVICE_TEST_MARKER", "")
	os.Unsetenv("BOTSERVICE_TEST_MARKER")
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("BOTSERVICE_TEST_MARKER=loaded\n"), 0o600))

	_, err := runCLI(t, "", "version", "--env-file", envFile)
	require.NoError(t, err)
	assert.Equal(t, "loaded", os.Getenv("BOTSERVICE_TEST_MARKER"))

	_, err = runCLI(t, "", "version", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestChatCmd(t *testing.T) {
	clearLUISEnv(t)

	out, err := runCLI(t, "make a payment\ncash\nno\nquit\n", "chat", "--conversation", "console-1")
	require.NoError(t, err, out)

	assert.Contains(t, out, "bot> Hi [username]")
	assert.Contains(t, out, "[Make a Payment | Renew my TV licence")
	assert.Contains(t, out, "ways that you can make a payment")
	assert.Contains(t, out, "[card: payByCash]")
	assert.Contains(t, out, "Sorry I couldn't help with that")
	assert.Contains(t, out, "0300 790 6165")
}

func TestChat_EOFEnds(t *testing.T) {
	clearLUISEnv(t)
	a, err := newApp(context.Background(), config.Default())
	require.NoError(t, err)
	defer func() { _ = a.close(context.Background()) }()

	var out bytes.Buffer
	require.NoError(t, chat(context.Background(), a.bot, "c1", "", strings.NewReader("renew\nAlice\n"), &out))

	assert.Contains(t, out.String(), "bot> Please enter your name.")
	assert.Contains(t, out.String(), "bot> Thanks Alice.")
}

func TestNewRecognizer(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.NLUConfig
		wantName   string
		configured bool
	}{
		{
			name:       "keyword",
			cfg:        config.NLUConfig{Type: config.NLUTypeKeyword, Keywords: config.DefaultKeywords(), MinScore: 0.5},
			wantName:   "keyword",
			configured: true,
		},
		{
			name: "luis",
			cfg: config.NLUConfig{Type: config.NLUTypeLUIS, LUIS: config.LUISConfig{
				AppID: "app", APIKey: "key", Host: "example.test",
			}},
			wantName:   "luis",
			configured: true,
		},
		{
			name:     "luis without credentials",
			cfg:      config.NLUConfig{Type: config.NLUTypeLUIS},
			wantName: "luis",
		},
		{
			name:     "none",
			cfg:      config.NLUConfig{Type: config.NLUTypeNone},
			wantName: "none",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecognizer(tt.cfg)
			assert.Equal(t, tt.wantName, r.Name())
			assert.Equal(t, tt.configured, r.IsConfigured())
		})
	}

	res, err := newRecognizer(config.NLUConfig{
		Type: config.NLUTypeKeyword, Keywords: config.DefaultKeywords(), MinScore: 0.5,
	}).Recognize(context.Background(), "I want to pay by cash")
	require.NoError(t, err)
	assert.Equal(t, nlu.IntentCashPayment, res.Label)
}

func TestNewApp_Memory(t *testing.T) {
	a, err := newApp(context.Background(), config.Default())
	require.NoError(t, err)
	defer func() { _ = a.close(context.Background()) }()

	_, ok := a.store.(*statestore.MemoryStore)
	assert.True(t, ok)
	assert.NoError(t, a.healthCheck(context.Background()))
	assert.Nil(t, a.spans)
}

func TestNewApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.StateStore = config.StateStoreConfig{
		Type:  config.StoreTypeRedis,
		Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "test"},
	}
	cfg.ApplyDefaults()

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = a.close(context.Background()) }()

	_, ok := a.store.(*statestore.RedisStore)
	require.True(t, ok)
	assert.NoError(t, a.healthCheck(context.Background()))

	mr.Close()
	assert.Error(t, a.healthCheck(context.Background()))
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.StateStore = config.StateStoreConfig{Type: config.StoreTypeRedis, Redis: config.RedisConfig{Addr: addr}}

	_, err := newApp(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stateStore")
}

func TestNewApp_Telemetry(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry = config.TelemetryConfig{Enabled: true, Endpoint: "http://127.0.0.1:4318/v1/traces"}

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.spans)
	require.NotNil(t, a.tracer)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = a.close(ctx)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, cfg, time.Second) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_ListenFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "256.0.0.1:bad"
	cfg.Metrics.Enabled = new(bool)

	err := serve(context.Background(), cfg, time.Second)
	require.Error(t, err)
}

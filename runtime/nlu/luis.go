package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jagmitg/botservice/pkg/httputil"
	"github.com/jagmitg/botservice/runtime/logger"
)

const (
	// defaultSlot is the LUIS publishing slot queried when none is set.
	defaultSlot = "production"

	// maxResponseBytes caps how much of a prediction response is read.
	maxResponseBytes = 1 << 20
)

// LUISConfig holds the credentials of a LUIS application.
type LUISConfig struct {
	AppID    string
	APIKey   string
	Host     string // e.g. "westus.api.cognitive.microsoft.com"; a scheme is optional
	Slot     string
	MinScore float64
	Timeout  time.Duration
}

// Configured reports whether all three credentials are present.
func (c LUISConfig) Configured() bool {
	return c.AppID != "" && c.APIKey != "" && c.Host != ""
}

// LUISRecognizer calls the LUIS v3 prediction endpoint.
type LUISRecognizer struct {
	cfg    LUISConfig
	client *http.Client
}

// LUISOption configures a LUISRecognizer.
type LUISOption func(*LUISRecognizer)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) LUISOption {
	return func(r *LUISRecognizer) { r.client = c }
}

// NewLUISRecognizer creates a LUIS client. Missing credentials are not an error:
// the recognizer reports IsConfigured() == false and dialogs take their degraded path.
func NewLUISRecognizer(cfg LUISConfig, opts ...LUISOption) *LUISRecognizer {
	if cfg.Slot == "" {
		cfg.Slot = defaultSlot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = httputil.DefaultRecognizerTimeout
	}
	r := &LUISRecognizer{
		cfg:    cfg,
		client: httputil.NewHTTPClient(cfg.Timeout),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Recognizer.
func (r *LUISRecognizer) Name() string { return "luis" }

// IsConfigured implements Recognizer.
func (r *LUISRecognizer) IsConfigured() bool { return r.cfg.Configured() }

// predictionResponse is the subset of the LUIS v3 response the bot reads.
type predictionResponse struct {
	Query      string `json:"query"`
	Prediction struct {
		TopIntent string `json:"topIntent"`
		Intents   map[string]struct {
			Score float64 `json:"score"`
		} `json:"intents"`
	} `json:"prediction"`
}

// Recognize queries LUIS for text.
func (r *LUISRecognizer) Recognize(ctx context.Context, text string) (RecognizedIntent, error) {
	if !r.IsConfigured() {
		return Unrecognized(text, false), ErrNotConfigured
	}

	endpoint := r.predictURL(text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Unrecognized(text, true), fmt.Errorf("build luis request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return Unrecognized(text, true), fmt.Errorf("luis request failed: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Unrecognized(text, true), fmt.Errorf("read luis response: %w", err)
	}
	logger.DebugContext(ctx, "luis prediction",
		"url", logger.RedactSensitiveData(endpoint),
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return Unrecognized(text, true), fmt.Errorf("luis returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pr predictionResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return Unrecognized(text, true), fmt.Errorf("decode luis response: %w", err)
	}

	scores := make(map[string]float64, len(pr.Prediction.Intents))
	for name, in := range pr.Prediction.Intents {
		scores[name] = in.Score
	}
	if len(scores) == 0 && pr.Prediction.TopIntent != "" {
		scores[pr.Prediction.TopIntent] = 1
	}
	return NewResult(text, scores, r.cfg.MinScore), nil
}

// redactURLError strips the subscription key from the request URL that the
// HTTP client embeds in its error, keeping the cause unwrappable.
func redactURLError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: logger.RedactSensitiveData(ue.URL), Err: ue.Err}
}

// predictURL builds the GET prediction URL for text.
func (r *LUISRecognizer) predictURL(text string) string {
	host := strings.TrimRight(r.cfg.Host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	q := url.Values{}
	q.Set("subscription-key", r.cfg.APIKey)
	q.Set("query", text)
	q.Set("show-all-intents", "true")
	q.Set("verbose", "false")
	return fmt.Sprintf("%s/luis/prediction/v3.0/apps/%s/slots/%s/predict?%s",
		host, url.PathEscape(r.cfg.AppID), url.PathEscape(r.cfg.Slot), q.Encode())
}

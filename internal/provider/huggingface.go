package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"imagebot/internal/domain"

	"github.com/tidwall/gjson"
)

// maxImageBytes caps the response body at Telegram's 10 MB photo upload limit.
const maxImageBytes = 10 << 20

// HuggingFaceConfig configures the Hugging Face Inference API client.
type HuggingFaceConfig struct {
	URL     string // full model endpoint, e.g. https://api-inference.huggingface.co/models/<owner>/<model>
	Token   string
	Timeout time.Duration
	Client  *http.Client // optional, overrides Timeout
	Logger  *slog.Logger
}

// HuggingFace generates images through a hosted text-to-image model.
type HuggingFace struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

// NewHuggingFace creates a new Hugging Face inference client.
func NewHuggingFace(cfg HuggingFaceConfig) *HuggingFace {
	client := cfg.Client
	if client == nil {
		client = SharedHTTPClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HuggingFace{
		url:    cfg.URL,
		token:  cfg.Token,
		client: client,
		logger: logger,
	}
}

// StatusError is returned when the inference endpoint answers with a non-2xx
// status. It unwraps to domain.ErrInference.
type StatusError struct {
	StatusCode    int
	Message       string  // "error" field of the JSON error payload, or the raw body
	EstimatedTime float64 // seconds until a cold model is loaded, when reported
}

func (e *StatusError) Error() string {
	if e.EstimatedTime > 0 {
		return fmt.Sprintf("inference API error (status %d): %s (estimated time %.0fs)",
			e.StatusCode, e.Message, e.EstimatedTime)
	}
	return fmt.Sprintf("inference API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return domain.ErrInference }

// Generate posts the prompt and returns the raw image bytes.
func (h *HuggingFace) Generate(ctx context.Context, req domain.InferenceRequest) (domain.InferenceResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.InferenceResponse{}, fmt.Errorf("%w: encode request: %v", domain.ErrInference, err)
	}

	httpReq, err := h.newRequest(ctx, http.MethodPost, bytes.NewReader(payload))
	if err != nil {
		return domain.InferenceResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return domain.InferenceResponse{}, fmt.Errorf("%w: inference API request: %v", domain.ErrInference, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return domain.InferenceResponse{}, fmt.Errorf("%w: read inference response: %v", domain.ErrInference, err)
	}
	if len(body) > maxImageBytes {
		return domain.InferenceResponse{}, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInference, maxImageBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.InferenceResponse{}, parseStatusError(resp.StatusCode, body)
	}
	if len(body) == 0 {
		return domain.InferenceResponse{}, fmt.Errorf("%w: empty response body (status %d)", domain.ErrInference, resp.StatusCode)
	}

	h.logger.Debug("inference complete",
		"status", resp.StatusCode,
		"bytes", len(body),
		"content_type", resp.Header.Get("Content-Type"),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return domain.InferenceResponse{
		Image:       body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Ping checks that the model endpoint is reachable and the token is accepted.
func (h *HuggingFace) Ping(ctx context.Context) error {
	req, err := h.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: inference API request: %v", domain.ErrInference, err)
	}
	defer resp.Body.Close()

	// A loading model answers 503 with an estimated time; anything else that
	// is not an auth failure means the endpoint is up.
	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode >= 500 && resp.StatusCode != http.StatusServiceUnavailable:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return parseStatusError(resp.StatusCode, body)
	}
	return nil
}

func (h *HuggingFace) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrInference, err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	return req, nil
}

// parseStatusError extracts the Hugging Face error payload
// ({"error": "...", "estimated_time": 20.0}) when the body is JSON.
func parseStatusError(status int, body []byte) *StatusError {
	serr := &StatusError{StatusCode: status}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		serr.Message = parsed.Get("error").String()
		serr.EstimatedTime = parsed.Get("estimated_time").Float()
	}
	if serr.Message == "" {
		serr.Message = truncate(string(body), 200)
	}
	if serr.Message == "" {
		serr.Message = http.StatusText(status)
	}
	return serr
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

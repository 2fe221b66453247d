package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPBackend calls a self-hosted medical model server.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPOption configures an HTTPBackend.
type HTTPOption func(*HTTPBackend)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(b *HTTPBackend) { b.httpClient = c }
}

// WithTimeout sets the client-side timeout for a single call.
func WithTimeout(d time.Duration) HTTPOption {
	return func(b *HTTPBackend) { b.httpClient.Timeout = d }
}

func NewHTTPBackend(baseURL string, opts ...HTTPOption) *HTTPBackend {
	b := &HTTPBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type assessmentRequest struct {
	Prompt       string   `json:"prompt"`
	UserProfile  *Profile `json:"user_profile,omitempty"`
	MaxNewTokens int      `json:"max_new_tokens,omitempty"`
	Temperature  float64  `json:"temperature"`
	TopP         float64  `json:"top_p"`
}

type chatRequest struct {
	Prompt       string        `json:"prompt"`
	History      []ChatMessage `json:"history"`
	UserProfile  *Profile      `json:"user_profile,omitempty"`
	MaxNewTokens int           `json:"max_new_tokens,omitempty"`
	Temperature  float64       `json:"temperature"`
	TopP         float64       `json:"top_p"`
}

type answerResponse struct {
	Answer *string `json:"answer"`
}

func (b *HTTPBackend) Name() string { return "http:" + b.baseURL }

// Generate posts the request to /emergency_assessment and returns the
// answer field.
func (b *HTTPBackend) Generate(ctx context.Context, req Request) (string, error) {
	return b.post(ctx, "/emergency_assessment", assessmentRequest{
		Prompt:       req.Prompt,
		UserProfile:  req.Profile,
		MaxNewTokens: req.MaxNewTokens,
		Temperature:  req.Temperature,
		TopP:         req.TopP,
	})
}

// Chat posts one conversation turn to /chat. A nil history is sent as an
// empty list.
func (b *HTTPBackend) Chat(ctx context.Context, req ChatRequest) (string, error) {
	history := req.History
	if history == nil {
		history = []ChatMessage{}
	}
	return b.post(ctx, "/chat", chatRequest{
		Prompt:       req.Prompt,
		History:      history,
		UserProfile:  req.Profile,
		MaxNewTokens: req.MaxNewTokens,
		Temperature:  req.Temperature,
		TopP:         req.TopP,
	})
}

func (b *HTTPBackend) post(ctx context.Context, path string, body interface{}) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call inference server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out answerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Answer == nil || strings.TrimSpace(*out.Answer) == "" {
		return "", ErrEmptyAnswer
	}
	return strings.TrimSpace(*out.Answer), nil
}

// HealthStatus is the body of the model server's /health endpoint.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelStatus string `json:"model_status"`
	ModelID     string `json:"model_id"`
}

// Health queries the model server. The model may legitimately be unloaded;
// only transport and status failures are errors.
func (b *HTTPBackend) Health(ctx context.Context) (*HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call inference server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &hs, nil
}

// Ping satisfies the health checker's probe signature.
func (b *HTTPBackend) Ping(ctx context.Context) error {
	_, err := b.Health(ctx)
	return err
}

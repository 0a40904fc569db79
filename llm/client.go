package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/matrixor/tsg-officer/state"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client is a provider-agnostic implementation of Service over an HTTP chat
// completion API, with retry and transient/fatal error classification.
type Client struct {
	providerName string
	model        string
	endpoint     string
	httpClient   *http.Client
	retryConfig  RetryConfig
	logger       *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout bounds each HTTP request to the provider. The retry loop
// may still make multiple attempts, each bounded separately.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.httpClient.Timeout = d
		}
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithEndpoint overrides the provider's default API endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(client *Client) {
		client.endpoint = endpoint
	}
}

// NewClient creates a client for a registered provider.
func NewClient(providerName, model string, opts ...ClientOption) (*Client, error) {
	if GetProvider(providerName) == nil {
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
	c := &Client{
		providerName: providerName,
		model:        model,
		retryConfig:  DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // Allow time for LLM responses
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Classify implements Service.
func (c *Client) Classify(ctx context.Context, text string) (*Classification, error) {
	content, err := c.complete(ctx, classifyPrompt(text))
	if err != nil {
		return nil, err
	}

	raw := ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("classification response contained no JSON")
	}
	var result Classification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}
	result.Confidence = clamp01(result.Confidence)
	return &result, nil
}

// EvaluateChecklist implements Service.
func (c *Client) EvaluateChecklist(ctx context.Context, req EvaluateRequest) (*state.ChecklistReport, error) {
	prompt, err := evaluatePrompt(req)
	if err != nil {
		return nil, err
	}
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	raw := ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("checklist response contained no JSON")
	}
	var report state.ChecklistReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("parse checklist report: %w", err)
	}
	normalizeReport(&report, req)
	return &report, nil
}

// SynthesizeFlowchart implements Service.
func (c *Client) SynthesizeFlowchart(ctx context.Context, description string) (*Flowchart, error) {
	content, err := c.complete(ctx, flowchartPrompt(description))
	if err != nil {
		return nil, err
	}

	raw := ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("flowchart response contained no JSON")
	}
	var result Flowchart
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse flowchart: %w", err)
	}
	if strings.TrimSpace(result.DiagramSource) == "" {
		return nil, fmt.Errorf("flowchart response missing diagram_source")
	}
	return &result, nil
}

// Explain implements Service.
func (c *Client) Explain(ctx context.Context, question, contextText string) (string, error) {
	content, err := c.complete(ctx, explainPrompt(question, contextText))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// SummarizeStep implements Service.
func (c *Client) SummarizeStep(ctx context.Context, req SummarizeRequest) (string, error) {
	content, err := c.complete(ctx, summarizePrompt(req))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// complete sends a chat request and returns the raw text content, retrying
// transient failures with exponential backoff.
func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, messages)
		if err == nil {
			return resp.Content, nil
		}

		lastErr = err

		// Don't retry fatal errors
		if IsFatal(err) {
			return "", err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"transient", IsTransient(err),
				"error", err)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
				// Continue to retry
			}
		}
	}

	return "", fmt.Errorf("llm request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// calculateBackoff computes exponential backoff duration with jitter.
// Jitter prevents thundering herd when multiple clients retry simultaneously.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// Add jitter: +/- 25% to prevent synchronized retries
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest executes a single HTTP request to the LLM endpoint.
func (c *Client) doRequest(ctx context.Context, messages []Message) (*Response, error) {
	provider := GetProvider(c.providerName)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", c.providerName))
	}

	url := provider.BuildURL(c.endpoint)

	body, err := provider.BuildRequestBody(c.model, messages, nil, 0)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending LLM request",
		"provider", c.providerName,
		"model", c.model,
		"url", url,
		"messages", len(messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, c.model)
	if err != nil {
		return nil, err
	}
	if resp.Usage.TotalTokens > 0 {
		c.logger.Debug("LLM response received",
			"model", resp.Model,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"total_tokens", resp.Usage.TotalTokens)
	}
	return resp, nil
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		// Rate limiting is transient
		return NewTransientError(err)
	case statusCode >= 500:
		// Server errors are transient
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		// Auth errors are fatal
		return NewFatalError(err)
	default:
		// Remaining 4xx and unknown errors default to fatal
		return NewFatalError(err)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

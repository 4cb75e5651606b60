package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/resilience"
)

// HTTPClient is the production StructuredLLM adapter: a single long-lived
// *http.Client (teacher's "singleton endpoint" pattern, SPEC_FULL.md §9)
// posting schema-enforced requests to an LLM gateway's JSON endpoint.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	breaker    *resilience.Breaker
	retry      resilience.RetryConfig
}

// NewHTTPClient builds an HTTPClient. timeout is the per-call deadline
// (spec.md §5: LLM_TIMEOUT_MS default 30s).
func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerConfig("llm." + model)),
		retry:      resilience.DefaultRetryConfig(),
	}
}

// BreakerName and BreakerState expose this client's circuit breaker for
// cmd/pipeline-worker's periodic breaker-state poll (spec.md §4.11).
func (c *HTTPClient) BreakerName() string  { return "llm." + c.model }
func (c *HTTPClient) BreakerState() string { return c.breaker.State() }

type wireRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Schema   json.RawMessage `json:"response_schema,omitempty"`
}

type wireResponse struct {
	Content string `json:"content"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Call posts req to the configured gateway endpoint, classifying errors and
// retrying transient failures through the shared resilience primitives.
func (c *HTTPClient) Call(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var result *Response
	op := func(ctx context.Context) error {
		v, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return c.callOnce(ctx, model, req)
		})
		if err != nil {
			return err
		}
		result = v.(*Response)
		return nil
	}

	if err := resilience.Retry(ctx, c.retry, op); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *HTTPClient) callOnce(ctx context.Context, model string, req Request) (*Response, error) {
	body, err := json.Marshal(wireRequest{Model: model, Messages: req.Messages, Schema: req.Schema})
	if err != nil {
		return nil, resilience.NewPermanent("llm.http", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, resilience.NewPermanent("llm.http", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, resilience.NewTransient("llm.http", fmt.Errorf("call gateway: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransient("llm.http", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 500 {
		return nil, resilience.NewTransient("llm.http", fmt.Errorf("gateway returned HTTP %d: %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewPermanent("llm.http", fmt.Errorf("gateway returned HTTP %d: %s", resp.StatusCode, respBody))
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, resilience.NewPermanent("llm.http", fmt.Errorf("decode gateway response: %w", err))
	}
	if !json.Valid([]byte(wire.Content)) {
		return nil, resilience.NewPermanent("llm.http", fmt.Errorf("gateway response content is not valid JSON: schema enforcement failed"))
	}

	return &Response{
		Raw:              json.RawMessage(wire.Content),
		PromptTokens:     wire.Usage.PromptTokens,
		CompletionTokens: wire.Usage.CompletionTokens,
	}, nil
}

// Warmup fires a trivial no-op call to absorb cold-start latency.
func (c *HTTPClient) Warmup(ctx context.Context) error {
	_, err := c.Call(ctx, Request{
		Model:    c.model,
		Messages: []Message{{Role: "user", Content: "ping"}},
	})
	return err
}

// Package claude adapts the Anthropic Messages API to the provider
// interface.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/athenasec/athena/pkg/config"
	"github.com/athenasec/athena/pkg/errors"
	"github.com/athenasec/athena/pkg/provider"
	"github.com/athenasec/athena/pkg/types"
)

const (
	providerName     = "claude"
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	anthropicVersion = "2023-06-01"
)

// Adapter calls the Anthropic Messages API.
type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// New builds the adapter from provider configuration. The API key is
// required; base URL and model fall back to Anthropic defaults.
func New(cfg config.ProviderConfig) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError("claude api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Adapter{config: cfg, client: &http.Client{}}, nil
}

func (a *Adapter) Name() string { return providerName }

// Analyze sends the analysis prompt and parses the model's JSON verdict.
// Timeouts and cancellation come from ctx.
func (a *Adapter) Analyze(ctx context.Context, req *types.AnalysisRequest) (*types.AnalysisResult, error) {
	completion, err := a.complete(ctx, messagesRequest{
		Model:       a.config.Model,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
		System:      provider.SystemPrompt,
		Messages:    []message{{Role: "user", Content: provider.BuildPrompt(req)}},
	})
	if err != nil {
		return nil, err
	}
	return provider.ParseVerdict(providerName, a.config.Model, completion)
}

// HealthCheck issues a minimal completion to verify reachability and
// credentials.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.complete(ctx, messagesRequest{
		Model:     a.config.Model,
		MaxTokens: 10,
		System:    "Reply with OK",
		Messages:  []message{{Role: "user", Content: "Hello"}},
	})
	return err
}

func (a *Adapter) complete(ctx context.Context, payload messagesRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.NewProviderError(providerName, "encoding request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewProviderError(providerName, "building request").WithCause(err)
	}
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", errors.NewProviderError(providerName, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.NewProviderError(providerName,
			fmt.Sprintf("api error: status %d: %s", resp.StatusCode, string(detail)))
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.NewProviderError(providerName, "decoding response").WithCause(err)
	}
	if len(decoded.Content) == 0 {
		return "", errors.NewProviderError(providerName, "empty completion")
	}
	return decoded.Content[0].Text, nil
}

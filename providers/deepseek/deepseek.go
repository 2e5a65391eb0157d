// Package deepseek adapts the DeepSeek chat API, which follows the OpenAI
// wire format, to the provider interface.
package deepseek

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
	providerName   = "deepseek"
	defaultBaseURL = "https://api.deepseek.com"
	defaultModel   = "deepseek-chat"
)

// Adapter calls the DeepSeek chat completions API.
type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// New builds the adapter from provider configuration.
func New(cfg config.ProviderConfig) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError("deepseek api key is required")
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

func (a *Adapter) Analyze(ctx context.Context, req *types.AnalysisRequest) (*types.AnalysisResult, error) {
	completion, err := a.complete(ctx, chatRequest{
		Model:       a.config.Model,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
		Messages: []message{
			{Role: "system", Content: provider.SystemPrompt},
			{Role: "user", Content: provider.BuildPrompt(req)},
		},
	})
	if err != nil {
		return nil, err
	}
	return provider.ParseVerdict(providerName, a.config.Model, completion)
}

// HealthCheck issues a minimal completion. DeepSeek has no cheap metadata
// endpoint, so a tiny chat call stands in.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.complete(ctx, chatRequest{
		Model:     a.config.Model,
		MaxTokens: 10,
		Messages:  []message{{Role: "user", Content: "Reply with OK"}},
	})
	return err
}

func (a *Adapter) complete(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.NewProviderError(providerName, "encoding request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewProviderError(providerName, "building request").WithCause(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

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

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.NewProviderError(providerName, "decoding response").WithCause(err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.NewProviderError(providerName, "empty completion")
	}
	return decoded.Choices[0].Message.Content, nil
}

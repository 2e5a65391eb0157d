// Package gemini adapts the Google Gemini generateContent API to the
// provider interface.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/athenasec/athena/pkg/config"
	"github.com/athenasec/athena/pkg/errors"
	"github.com/athenasec/athena/pkg/provider"
	"github.com/athenasec/athena/pkg/types"
)

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// Adapter calls the Gemini generateContent API. Authentication is a key
// query parameter rather than a header.
type Adapter struct {
	config config.ProviderConfig
	client *http.Client
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// New builds the adapter from provider configuration.
func New(cfg config.ProviderConfig) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError("gemini api key is required")
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
	completion, err := a.complete(ctx, generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: provider.SystemPrompt}}},
		Contents:          []content{{Parts: []part{{Text: provider.BuildPrompt(req)}}}},
		GenerationConfig: generationConfig{
			Temperature:     a.config.Temperature,
			MaxOutputTokens: a.config.MaxTokens,
		},
	})
	if err != nil {
		return nil, err
	}
	return provider.ParseVerdict(providerName, a.config.Model, completion)
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.complete(ctx, generateRequest{
		Contents:         []content{{Parts: []part{{Text: "ping"}}}},
		GenerationConfig: generationConfig{MaxOutputTokens: 1},
	})
	return err
}

func (a *Adapter) complete(ctx context.Context, payload generateRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.NewProviderError(providerName, "encoding request").WithCause(err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		a.config.BaseURL, a.config.Model, url.QueryEscape(a.config.APIKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewProviderError(providerName, "building request").WithCause(err)
	}
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

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.NewProviderError(providerName, "decoding response").WithCause(err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", errors.NewProviderError(providerName, "empty completion")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenasec/athena/pkg/config"
	apperrors "github.com/athenasec/athena/pkg/errors"
	"github.com/athenasec/athena/pkg/types"
)

func verdictJSON() string {
	return `{
		"confidence": 0.92,
		"threat_level": "malicious",
		"malware_family": "agenttesla",
		"signatures": ["keylogger"],
		"behaviors": ["exfiltrates credentials"],
		"iocs": {"domains": ["evil.example"]},
		"recommendations": ["quarantine the host"],
		"detailed_analysis": "Credential stealer."
	}`
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := New(config.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "claude-test",
	})
	require.NoError(t, err)
	return adapter
}

func TestAdapter_AnalyzeParsesVerdict(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "claude-test", payload["model"])
		assert.NotEmpty(t, payload["system"])

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"text": "Here is my assessment:\n" + verdictJSON()},
			},
		})
	})

	result, err := adapter.Analyze(context.Background(), &types.AnalysisRequest{
		Content:      "suspicious blob",
		AnalysisType: types.AnalysisClassify,
	})
	require.NoError(t, err)

	assert.Equal(t, "claude", result.Provider)
	assert.Equal(t, "claude-test", result.Model)
	assert.Equal(t, types.ThreatMalicious, result.ThreatLevel)
	assert.Equal(t, "agenttesla", result.MalwareFamily)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
	assert.Equal(t, []string{"evil.example"}, result.IOCs.Domains)
}

func TestAdapter_AnalyzeSurfacesAPIErrors(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
	})

	_, err := adapter.Analyze(context.Background(), &types.AnalysisRequest{
		Content:      "blob",
		AnalysisType: types.AnalysisClassify,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeProvider))
	assert.Contains(t, err.Error(), "503")
}

func TestAdapter_AnalyzeRejectsNonJSONCompletion(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "I cannot analyze this."}},
		})
	})

	_, err := adapter.Analyze(context.Background(), &types.AnalysisRequest{
		Content:      "blob",
		AnalysisType: types.AnalysisClassify,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeProvider))
}

func TestAdapter_HealthCheck(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "OK"}},
		})
	})
	assert.NoError(t, adapter.HealthCheck(context.Background()))
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(config.ProviderConfig{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfig))
}

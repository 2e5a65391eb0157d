package provider

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/athenasec/athena/pkg/errors"
	"github.com/athenasec/athena/pkg/types"
)

type verdict struct {
	Confidence       float64    `json:"confidence"`
	ThreatLevel      string     `json:"threat_level"`
	MalwareFamily    *string    `json:"malware_family"`
	Signatures       []string   `json:"signatures"`
	Behaviors        []string   `json:"behaviors"`
	IOCs             types.IOCs `json:"iocs"`
	Recommendations  []string   `json:"recommendations"`
	DetailedAnalysis string     `json:"detailed_analysis"`
}

// ParseVerdict extracts the JSON verdict from a model completion and maps it
// to a normalized result. Models frequently wrap the JSON in prose or code
// fences, so everything outside the outermost braces is discarded.
func ParseVerdict(providerName, model, completion string) (*types.AnalysisResult, error) {
	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start < 0 || end <= start {
		return nil, errors.NewProviderError(providerName, "no JSON verdict in completion")
	}

	var v verdict
	if err := json.Unmarshal([]byte(completion[start:end+1]), &v); err != nil {
		return nil, errors.NewProviderError(providerName, "undecodable verdict").WithCause(err)
	}

	result := &types.AnalysisResult{
		Provider:         providerName,
		Model:            model,
		Timestamp:        time.Now().UTC(),
		Confidence:       clampConfidence(v.Confidence),
		ThreatLevel:      parseThreatLevel(v.ThreatLevel),
		Signatures:       v.Signatures,
		Behaviors:        v.Behaviors,
		IOCs:             v.IOCs,
		Recommendations:  v.Recommendations,
		DetailedAnalysis: v.DetailedAnalysis,
	}
	if v.MalwareFamily != nil {
		result.MalwareFamily = *v.MalwareFamily
	}
	return result, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// parseThreatLevel defaults unknown values to suspicious rather than failing
// the whole analysis.
func parseThreatLevel(s string) types.ThreatLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(types.ThreatBenign):
		return types.ThreatBenign
	case string(types.ThreatMalicious):
		return types.ThreatMalicious
	case string(types.ThreatCritical):
		return types.ThreatCritical
	default:
		return types.ThreatSuspicious
	}
}

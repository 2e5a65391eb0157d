package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenasec/athena/pkg/types"
)

func TestParseVerdict_ExtractsJSONFromProse(t *testing.T) {
	completion := "Sure, here is the analysis:\n```json\n" + `{
		"confidence": 0.8,
		"threat_level": "critical",
		"malware_family": "lockbit",
		"behaviors": ["encrypts user files"],
		"detailed_analysis": "Ransomware."
	}` + "\n```\nLet me know if you need more."

	result, err := ParseVerdict("claude", "claude-test", completion)
	require.NoError(t, err)

	assert.Equal(t, "claude", result.Provider)
	assert.Equal(t, types.ThreatCritical, result.ThreatLevel)
	assert.Equal(t, "lockbit", result.MalwareFamily)
	assert.Equal(t, []string{"encrypts user files"}, result.Behaviors)
	assert.False(t, result.Timestamp.IsZero())
}

func TestParseVerdict_DefaultsUnknownThreatLevelToSuspicious(t *testing.T) {
	result, err := ParseVerdict("openai", "gpt-test", `{"confidence": 0.5, "threat_level": "weird"}`)
	require.NoError(t, err)
	assert.Equal(t, types.ThreatSuspicious, result.ThreatLevel)
}

func TestParseVerdict_ClampsConfidence(t *testing.T) {
	result, err := ParseVerdict("openai", "gpt-test", `{"confidence": 3.2, "threat_level": "benign"}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Confidence)

	result, err = ParseVerdict("openai", "gpt-test", `{"confidence": -1, "threat_level": "benign"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestParseVerdict_NullMalwareFamily(t *testing.T) {
	result, err := ParseVerdict("deepseek", "deepseek-test", `{"confidence": 0.3, "threat_level": "benign", "malware_family": null}`)
	require.NoError(t, err)
	assert.Empty(t, result.MalwareFamily)
}

func TestParseVerdict_RejectsCompletionWithoutJSON(t *testing.T) {
	_, err := ParseVerdict("claude", "claude-test", "I am unable to help with that.")
	require.Error(t, err)
}

func TestBuildPrompt_IncludesContentAndSortedOptions(t *testing.T) {
	prompt := BuildPrompt(&types.AnalysisRequest{
		Content:      "print('hi')",
		AnalysisType: types.AnalysisDeobfuscate,
		Options:      map[string]string{"language": "python", "depth": "full"},
	})

	assert.Contains(t, prompt, "print('hi')")
	assert.Contains(t, prompt, "Deobfuscate")
	assert.Less(t, strings.Index(prompt, "depth: full"), strings.Index(prompt, "language: python"))
}

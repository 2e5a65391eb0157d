package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/athenasec/athena/pkg/types"
)

// SystemPrompt is the analyst persona shared by all chat-based adapters.
const SystemPrompt = "You are an expert malware analyst with deep knowledge of " +
	"malware families, attack techniques, and threat intelligence. " +
	"Always respond with valid JSON."

var taskDescriptions = map[types.AnalysisType]string{
	types.AnalysisDeobfuscate:     "Deobfuscate the code below and explain what the cleaned-up version does.",
	types.AnalysisVulnerabilities: "Identify exploitable vulnerabilities in the code below.",
	types.AnalysisClassify:        "Classify the content below: determine whether it is malicious and, if so, which malware family it belongs to.",
	types.AnalysisBehavioral:      "Describe the runtime behavior of the content below: persistence, network activity, file system and process changes.",
}

// BuildPrompt renders the user prompt for an analysis request. Request
// options are appended as analyst hints in a stable order.
func BuildPrompt(req *types.AnalysisRequest) string {
	var b strings.Builder
	b.WriteString(taskDescriptions[req.AnalysisType])
	b.WriteString("\n\n")

	if len(req.Options) > 0 {
		keys := make([]string, 0, len(req.Options))
		for k := range req.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Analysis hints:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, req.Options[k])
		}
		b.WriteString("\n")
	}

	b.WriteString(`Provide your analysis in the following JSON format:
{
    "confidence": <float between 0 and 1>,
    "threat_level": "benign" | "suspicious" | "malicious" | "critical",
    "malware_family": "<family name or null>",
    "signatures": ["<signature>", ...],
    "behaviors": ["<behavior>", ...],
    "iocs": {
        "domains": [], "ips": [], "urls": [], "files": [],
        "registry_keys": [], "processes": [], "mutexes": []
    },
    "recommendations": ["<recommendation>", ...],
    "detailed_analysis": "<comprehensive analysis text>"
}

Content:
`)
	b.WriteString(req.Content)
	return b.String()
}

package types

import (
	"time"
)

// AnalysisType identifies the kind of analysis requested from a provider
type AnalysisType string

const (
	AnalysisDeobfuscate     AnalysisType = "deobfuscate"
	AnalysisVulnerabilities AnalysisType = "vulnerabilities"
	AnalysisClassify        AnalysisType = "classify"
	AnalysisBehavioral      AnalysisType = "behavioral"
)

// Valid reports whether the analysis type is one of the supported values
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisDeobfuscate, AnalysisVulnerabilities, AnalysisClassify, AnalysisBehavioral:
		return true
	}
	return false
}

// ThreatLevel is the provider's verdict on the analyzed content
type ThreatLevel string

const (
	ThreatBenign     ThreatLevel = "benign"
	ThreatSuspicious ThreatLevel = "suspicious"
	ThreatMalicious  ThreatLevel = "malicious"
	ThreatCritical   ThreatLevel = "critical"
)

// IOCs holds indicators of compromise extracted during analysis
type IOCs struct {
	Domains      []string `json:"domains,omitempty"`
	IPs          []string `json:"ips,omitempty"`
	URLs         []string `json:"urls,omitempty"`
	Files        []string `json:"files,omitempty"`
	RegistryKeys []string `json:"registry_keys,omitempty"`
	Processes    []string `json:"processes,omitempty"`
	Mutexes      []string `json:"mutexes,omitempty"`
}

// AnalysisRequest is the unit of work handed to a provider adapter
type AnalysisRequest struct {
	Content      string            `json:"content"`
	AnalysisType AnalysisType      `json:"analysis_type"`
	Options      map[string]string `json:"options,omitempty"`
}

// AnalysisResult is the normalized provider response
type AnalysisResult struct {
	Provider         string        `json:"provider"`
	Model            string        `json:"model,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
	Confidence       float64       `json:"confidence"`
	ThreatLevel      ThreatLevel   `json:"threat_level"`
	MalwareFamily    string        `json:"malware_family,omitempty"`
	Signatures       []string      `json:"signatures,omitempty"`
	Behaviors        []string      `json:"behaviors,omitempty"`
	IOCs             IOCs          `json:"iocs"`
	Recommendations  []string      `json:"recommendations,omitempty"`
	DetailedAnalysis string        `json:"detailed_analysis"`
	ProcessingTime   time.Duration `json:"processing_time"`
}

// BatchRequest is a single request within a submitted batch.
// ID must be unique within the batch; priority 0 is the highest.
type BatchRequest struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	AnalysisType AnalysisType      `json:"analysis_type"`
	Options      map[string]string `json:"options,omitempty"`
	Priority     int               `json:"priority"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	RetryCount   int               `json:"retry_count"`
	MaxRetries   int               `json:"max_retries"`
}

// BatchResponse is the terminal outcome for one batch request.
// Exactly one of Result and Err is set.
type BatchResponse struct {
	RequestID    string          `json:"request_id"`
	Result       *AnalysisResult `json:"result,omitempty"`
	Err          error           `json:"-"`
	ErrorMessage string          `json:"error,omitempty"`
	ProviderUsed string          `json:"provider_used,omitempty"`
	Duration     time.Duration   `json:"duration"`
}

// BatchProgress is a snapshot of a batch's completion state.
// Completed and failed counts never decrease within a batch lifecycle.
type BatchProgress struct {
	BatchID               string        `json:"batch_id"`
	TotalRequests         int           `json:"total_requests"`
	CompletedRequests     int           `json:"completed_requests"`
	FailedRequests        int           `json:"failed_requests"`
	CancelledRequests     int           `json:"cancelled_requests"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
}

// QueueStatus is a snapshot of the scheduler's queue state. Completed and
// failed counters cover the scheduler's lifetime, not a single batch.
type QueueStatus struct {
	PendingRequests       int           `json:"pending_requests"`
	ActiveRequests        int           `json:"active_requests"`
	CompletedRequests     int64         `json:"completed_requests"`
	FailedRequests        int64         `json:"failed_requests"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
}

// BreakerState is the circuit breaker state for a provider
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// ProviderHealth is a snapshot of one provider's circuit breaker
type ProviderHealth struct {
	ProviderID          string       `json:"provider_id"`
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	OpenedAt            time.Time    `json:"opened_at,omitempty"`
	CooldownUntil       time.Time    `json:"cooldown_until,omitempty"`
}

// CacheStats holds counters for the tiered result cache
type CacheStats struct {
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`
	Evictions        int64 `json:"evictions"`
	CurrentSizeBytes int64 `json:"current_size_bytes"`
	EntryCount       int   `json:"entry_count"`
}

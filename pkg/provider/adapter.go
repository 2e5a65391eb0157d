// Package provider defines the capability interface that every analysis
// provider adapter must implement. The orchestration core holds a
// priority-ordered list of Adapter values and never dispatches on provider
// names.
package provider

import (
	"context"

	"github.com/athenasec/athena/pkg/types"
)

// Adapter is implemented once per analysis backend (Claude, OpenAI,
// DeepSeek, ...). Adapters own request payload construction and response
// mapping; the orchestration core only sees normalized results.
type Adapter interface {
	// Name returns the provider identifier used for circuit breaker and
	// telemetry bookkeeping
	Name() string

	// Analyze executes one analysis call. Implementations must honor ctx
	// cancellation and deadlines; the coordinator applies a per-call timeout.
	Analyze(ctx context.Context, req *types.AnalysisRequest) (*types.AnalysisResult, error)

	// HealthCheck verifies the provider is reachable
	HealthCheck(ctx context.Context) error
}

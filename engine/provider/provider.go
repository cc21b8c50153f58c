// Package provider decides whose credentials a request runs under and
// adapts the rendered prompt to a concrete generative-text API.
package provider

import (
	"context"
	"fmt"

	"github.com/taskgate/taskgate/engine/task"
)

// Credentials carry everything an adapter needs to call upstream. They are
// resolved fresh per request and never persisted by this subsystem.
type Credentials struct {
	Provider       string
	APIKey         string
	Model          string
	IsUserSupplied bool
}

// RunResult is a single provider response. Content is a string for
// markdown-format tasks and a decoded structure for json/structured ones.
type RunResult struct {
	Model   string
	Content any
	Raw     map[string]any
}

// Adapter is the capability interface one upstream provider implements.
type Adapter interface {
	Name() string
	Run(ctx context.Context, prompt *task.RenderedPrompt, format *task.ResponseFormat) (*RunResult, error)
}

// ResolutionError means no usable credentials exist under the resolution
// policy, or the requested provider is unknown. Mapped to a client error.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string { return e.Reason }

// ExecutionError means the upstream call failed or returned unusable
// content. Mapped to a bad-gateway error; full detail stays server-side.
type ExecutionError struct {
	Provider   string
	StatusCode int
	Reason     string
}

func (e *ExecutionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// FactoryConfig carries the adapter wiring the factory needs beyond the
// resolved credentials.
type FactoryConfig struct {
	GeminiBaseURL string
}

// NewAdapter selects the adapter for the resolved credentials. Unknown
// providers fail here, before any network call.
func NewAdapter(creds *Credentials, cfg *FactoryConfig) (Adapter, error) {
	switch creds.Provider {
	case ProviderGemini:
		baseURL := ""
		if cfg != nil {
			baseURL = cfg.GeminiBaseURL
		}
		return NewGeminiAdapter(creds.APIKey, creds.Model, baseURL)
	default:
		return nil, &ResolutionError{Reason: fmt.Sprintf("unsupported provider %q", creds.Provider)}
	}
}

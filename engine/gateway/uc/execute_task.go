// Package uc holds the gateway's request orchestration.
package uc

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskgate/taskgate/engine/cache"
	"github.com/taskgate/taskgate/engine/capture"
	"github.com/taskgate/taskgate/engine/provider"
	"github.com/taskgate/taskgate/engine/task"
	"github.com/taskgate/taskgate/pkg/logger"
)

// TaskLoadError wraps loader failures that are neither a missing task nor
// an invalid definition.
type TaskLoadError struct{ Err error }

func (e *TaskLoadError) Error() string { return fmt.Sprintf("failed to load AI task definition: %v", e.Err) }
func (e *TaskLoadError) Unwrap() error { return e.Err }

// ContextLoadError wraps a context-source read failure. Its message is
// safe to surface to the caller.
type ContextLoadError struct{ Err error }

func (e *ContextLoadError) Error() string { return e.Err.Error() }
func (e *ContextLoadError) Unwrap() error { return e.Err }

// CaptureError wraps a data-capture failure. The generated content is
// withheld when this is returned.
type CaptureError struct{ Err error }

func (e *CaptureError) Error() string { return fmt.Sprintf("failed to persist AI task results: %v", e.Err) }
func (e *CaptureError) Unwrap() error { return e.Err }

// AdapterFactory builds the adapter for resolved credentials. Swappable
// in tests.
type AdapterFactory func(creds *provider.Credentials) (provider.Adapter, error)

// ExecuteTaskInput is one gateway request after transport-level decoding.
type ExecuteTaskInput struct {
	RequestID   string
	ModuleID    string
	TaskID      string
	Provider    string
	Inputs      map[string]any
	Toggles     task.Selections
	BypassCache bool
	TeamID      string
	Caller      task.Caller
}

// CacheStatus reports whether the response was served from cache.
type CacheStatus struct {
	Hit                 bool `json:"hit"`
	TTLRemainingSeconds *int `json:"ttlRemainingSeconds,omitempty"`
}

// ExecuteTaskOutput is the gateway response body.
type ExecuteTaskOutput struct {
	RequestID    string         `json:"requestId"`
	ModuleID     string         `json:"moduleId"`
	TaskID       string         `json:"taskId"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	Cache        CacheStatus    `json:"cache"`
	Content      any            `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	CapturedData map[string]any `json:"capturedData,omitempty"`
}

// ExecuteTask runs one task end to end: load, render, resolve, cache
// lookup, provider call, data capture, cache write.
type ExecuteTask struct {
	loader     *task.Loader
	resolver   *provider.Resolver
	newAdapter AdapterFactory
	cache      *cache.Service
	capture    *capture.Executor
}

func NewExecuteTask(
	loader *task.Loader,
	resolver *provider.Resolver,
	newAdapter AdapterFactory,
	cacheSvc *cache.Service,
	captureExec *capture.Executor,
) *ExecuteTask {
	return &ExecuteTask{
		loader:     loader,
		resolver:   resolver,
		newAdapter: newAdapter,
		cache:      cacheSvc,
		capture:    captureExec,
	}
}

func (u *ExecuteTask) Execute(ctx context.Context, in *ExecuteTaskInput) (*ExecuteTaskOutput, error) {
	log := logger.FromContext(ctx)

	def, err := u.loader.Load(ctx, in.ModuleID, in.TaskID)
	if err != nil {
		var notFound *task.NotFoundError
		var invalid *task.ValidationError
		if errors.As(err, &notFound) || errors.As(err, &invalid) {
			return nil, err
		}
		return nil, &TaskLoadError{Err: err}
	}

	contextValues, err := task.LoadContextValues(ctx, def, u.loader.Repository())
	if err != nil {
		return nil, &ContextLoadError{Err: err}
	}

	tplCtx := task.BuildContext(def, in.ModuleID, in.Inputs, in.Toggles, contextValues, in.Caller, nil)
	prompt := task.RenderPrompt(def, in.Toggles, tplCtx)

	creds, err := u.resolver.Resolve(ctx, provider.ResolveInput{
		UserID:            in.Caller.UserID,
		TeamID:            in.TeamID,
		PreferredProvider: in.Provider,
	})
	if err != nil {
		return nil, err
	}

	adapter, err := u.newAdapter(creds)
	if err != nil {
		return nil, err
	}

	cacheEnabled := def.Cache.Active()
	fingerprint := cache.Fingerprint(in.Inputs, in.Toggles)

	if cacheEnabled && !in.BypassCache {
		cacheKey := cache.Key(prompt, creds.Provider, creds.Model, def.ID, fingerprint)
		if hit := u.cache.Lookup(ctx, cacheKey); hit != nil {
			return cachedOutput(in, def, creds, hit), nil
		}
	}

	result, err := adapter.Run(ctx, prompt, def.Prompt.ResponseFormat)
	if err != nil {
		return nil, err
	}

	out := &ExecuteTaskOutput{
		RequestID: in.RequestID,
		ModuleID:  def.ModuleID,
		TaskID:    def.ID,
		Provider:  adapter.Name(),
		Model:     result.Model,
		Cache:     CacheStatus{Hit: false},
		Content:   result.Content,
		Metadata: map[string]any{
			"isUserSuppliedProvider": creds.IsUserSupplied,
		},
	}

	responseCtx := &task.ResponseContext{
		Content: result.Content,
		Raw:     result.Raw,
		Model:   result.Model,
	}
	captureCtx := task.BuildContext(def, in.ModuleID, in.Inputs, in.Toggles, contextValues, in.Caller, responseCtx)
	summary, err := u.capture.Execute(ctx, def.DataCapture, captureCtx)
	if err != nil {
		log.Error("AI data capture failed", "task_id", def.ID, "error", err)
		return nil, &CaptureError{Err: err}
	}
	if summary != nil {
		captured := map[string]any{
			"executed":   true,
			"operations": summary.Operations,
			"tables":     summary.Tables,
		}
		out.CapturedData = captured
		out.Metadata["dataCapture"] = captured
	}

	if cacheEnabled && def.Cache.TTLSeconds > 0 {
		cacheKey := cache.Key(prompt, creds.Provider, result.Model, def.ID, fingerprint)
		u.cache.Store(ctx, &cache.Record{
			CacheKey:     cacheKey,
			ProviderName: creds.Provider,
			ModelName:    result.Model,
			TaskID:       def.ID,
			Response: cache.Entry{
				Model:        result.Model,
				Content:      result.Content,
				Metadata:     out.Metadata,
				CapturedData: out.CapturedData,
			},
		}, def.Cache.TTLSeconds)
	}

	return out, nil
}

func cachedOutput(in *ExecuteTaskInput, def *task.Definition, creds *provider.Credentials, hit *cache.Hit) *ExecuteTaskOutput {
	providerName := hit.ProviderName
	if providerName == "" {
		providerName = creds.Provider
	}
	model := hit.Response.Model
	if model == "" {
		model = hit.ModelName
	}
	if model == "" {
		model = creds.Model
	}
	if model == "" {
		model = "unknown"
	}

	metadata := map[string]any{}
	for k, v := range hit.Response.Metadata {
		metadata[k] = v
	}
	metadata["isUserSuppliedProvider"] = creds.IsUserSupplied
	metadata["source"] = "cache"

	ttl := hit.TTLRemainingSeconds
	return &ExecuteTaskOutput{
		RequestID:    in.RequestID,
		ModuleID:     def.ModuleID,
		TaskID:       def.ID,
		Provider:     providerName,
		Model:        model,
		Cache:        CacheStatus{Hit: true, TTLRemainingSeconds: &ttl},
		Content:      hit.Response.Content,
		Metadata:     metadata,
		CapturedData: hit.Response.CapturedData,
	}
}

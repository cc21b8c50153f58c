package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/taskgate/taskgate/engine/task"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-1.5-pro-latest"
	geminiTimeout        = 120 * time.Second
)

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      *geminiContent   `json:"content,omitempty"`
	FinishReason string           `json:"finishReason,omitempty"`
	Safety       []map[string]any `json:"safetyRatings,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates,omitempty"`
	PromptFeedback map[string]any    `json:"promptFeedback,omitempty"`
	ModelVersion   string            `json:"modelVersion,omitempty"`
}

// GeminiAdapter talks to the Generative Language generateContent endpoint.
// One request per Run, no retries.
type GeminiAdapter struct {
	client *resty.Client
	apiKey string
	model  string
}

func NewGeminiAdapter(apiKey, model, baseURL string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, &ResolutionError{Reason: "gemini adapter requires an API key"}
	}
	if model == "" {
		model = geminiDefaultModel
	}
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(geminiTimeout).
		SetHeader("Content-Type", "application/json")
	return &GeminiAdapter{client: client, apiKey: apiKey, model: model}, nil
}

func (a *GeminiAdapter) Name() string { return ProviderGemini }

func (a *GeminiAdapter) Run(ctx context.Context, prompt *task.RenderedPrompt, format *task.ResponseFormat) (*RunResult, error) {
	payload, err := buildGeminiRequest(prompt, format)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("key", a.apiKey).
		SetBody(payload).
		Post(fmt.Sprintf("/models/%s:generateContent", a.model))
	if err != nil {
		return nil, &ExecutionError{Provider: ProviderGemini, Reason: fmt.Sprintf("request failed: %v", err)}
	}
	if resp.IsError() {
		return nil, &ExecutionError{
			Provider:   ProviderGemini,
			StatusCode: resp.StatusCode(),
			Reason:     upstreamErrorDetail(resp.Body()),
		}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, &ExecutionError{Provider: ProviderGemini, Reason: fmt.Sprintf("failed to decode response: %v", err)}
	}
	var rawPayload map[string]any
	_ = json.Unmarshal(resp.Body(), &rawPayload)

	if len(parsed.Candidates) == 0 || parsed.Candidates[0].Content == nil || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &ExecutionError{Provider: ProviderGemini, Reason: "API did not return any content"}
	}
	primary := parsed.Candidates[0]

	text := collectText(primary.Content.Parts)
	if text == "" {
		return nil, &ExecutionError{Provider: ProviderGemini, Reason: "API response missing text content"}
	}

	content, err := parseStructuredContent(text, format)
	if err != nil {
		return nil, err
	}

	model := parsed.ModelVersion
	if model == "" {
		model = a.model
	}
	return &RunResult{
		Model:   model,
		Content: content,
		Raw: map[string]any{
			"payload":        rawPayload,
			"finishReason":   primary.FinishReason,
			"safetyRatings":  primary.Safety,
			"promptFeedback": parsed.PromptFeedback,
		},
	}, nil
}

func buildGeminiRequest(prompt *task.RenderedPrompt, format *task.ResponseFormat) (*geminiRequest, error) {
	var systemParts []geminiPart
	var conversation []geminiContent

	for _, segment := range prompt.Segments {
		if strings.TrimSpace(segment.Content) == "" {
			continue
		}
		if segment.Role == task.RoleSystem {
			systemParts = append(systemParts, geminiPart{Text: segment.Content})
			continue
		}
		conversation = append(conversation, geminiContent{
			Role:  mapGeminiRole(segment.Role),
			Parts: []geminiPart{{Text: segment.Content}},
		})
	}

	if len(conversation) == 0 {
		return nil, &ExecutionError{Provider: ProviderGemini, Reason: "prompt requires at least one non-system segment"}
	}

	req := &geminiRequest{Contents: conversation}
	if len(systemParts) > 0 {
		req.SystemInstruction = &geminiContent{Role: "system", Parts: systemParts}
	}

	if format != nil && (format.Type == task.FormatJSON || format.Type == task.FormatStructured) {
		config := map[string]any{"responseMimeType": "application/json"}
		if format.Type == task.FormatStructured && format.Schema != nil {
			config["responseSchema"] = format.Schema
		}
		req.GenerationConfig = config
	}
	return req, nil
}

func mapGeminiRole(role task.Role) string {
	if role == task.RoleAssistant {
		return "model"
	}
	return "user"
}

func collectText(parts []geminiPart) string {
	var texts []string
	for _, part := range parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// parseStructuredContent leaves markdown responses as-is and decodes
// json/structured ones, failing loudly when the model emits invalid JSON.
func parseStructuredContent(text string, format *task.ResponseFormat) (any, error) {
	if format == nil || format.Type == "" || format.Type == task.FormatMarkdown {
		return text, nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, &ExecutionError{
			Provider: ProviderGemini,
			Reason:   fmt.Sprintf("failed to parse %s response as JSON: %v", format.Type, err),
		}
	}
	return decoded, nil
}

// upstreamErrorDetail pulls the provider's own message out of an error
// body when it has one, falling back to the raw body.
func upstreamErrorDetail(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return "no error detail"
	}
	return detail
}

package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskgate/taskgate/engine/content"
	"github.com/taskgate/taskgate/pkg/logger"
	"github.com/taskgate/taskgate/pkg/tplengine"
)

// Selections maps toggle group ids to the caller's choice: a string for
// single groups, a []string for multi groups.
type Selections map[string]any

// NormalizeSelections filters an untyped toggle payload down to the values
// the renderer understands. Anything that is not a string or a string slice
// is dropped.
func NormalizeSelections(raw map[string]any) Selections {
	normalized := Selections{}
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			normalized[key] = v
		case []string:
			normalized[key] = v
		case []any:
			strs := make([]string, 0, len(v))
			ok := true
			for _, item := range v {
				s, isStr := item.(string)
				if !isStr {
					ok = false
					break
				}
				strs = append(strs, s)
			}
			if ok {
				normalized[key] = strs
			}
		}
	}
	return normalized
}

// Caller identifies the authenticated requester for template purposes.
type Caller struct {
	UserID string
	Email  string
	TeamID string
}

// ResponseContext exposes a completed provider call to post-response
// templates (data capture).
type ResponseContext struct {
	Content any
	Raw     any
	Model   string
}

// RenderedSegment is one role-tagged fragment of the final prompt.
type RenderedSegment struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RenderedPrompt is the ephemeral, fully templated prompt for one request.
type RenderedPrompt struct {
	Segments []RenderedSegment `json:"segments"`
}

// BuildContext merges everything templates may reference: task identity and
// metadata, raw inputs plus a JSON mirror, resolved toggle selections,
// loaded context-source values, the caller, and (after the provider call)
// the response.
func BuildContext(
	def *Definition,
	moduleID string,
	inputs map[string]any,
	toggles Selections,
	contextValues map[string]string,
	caller Caller,
	response *ResponseContext,
) map[string]any {
	inputCtx := map[string]any{}
	for k, v := range inputs {
		inputCtx[k] = v
	}
	inputCtx["json"] = mustJSON(inputs)

	ctxValues := map[string]any{}
	for k, v := range contextValues {
		ctxValues[k] = v
	}

	tplCtx := map[string]any{
		"task": map[string]any{
			"id":        def.ID,
			"moduleId":  moduleID,
			"metadata":  structToMap(def.Metadata),
			"placement": structToMap(def.Placement),
		},
		"inputs":  inputCtx,
		"toggles": toggleContext(def, toggles),
		"context": ctxValues,
		"auth": map[string]any{
			"userId": caller.UserID,
			"email":  caller.Email,
			"teamId": caller.TeamID,
		},
	}
	if response != nil {
		jsonMirror, isStr := response.Content.(string)
		if !isStr {
			jsonMirror = mustJSON(response.Content)
		}
		tplCtx["response"] = map[string]any{
			"content": response.Content,
			"raw":     response.Raw,
			"model":   response.Model,
			"json":    jsonMirror,
		}
	}
	return tplCtx
}

// RenderPrompt filters the definition's segments against the caller's
// toggle selections and renders each surviving template.
func RenderPrompt(def *Definition, toggles Selections, tplCtx map[string]any) *RenderedPrompt {
	rendered := &RenderedPrompt{}
	for _, segment := range def.Prompt.Segments {
		if !includeSegment(&segment, toggles) {
			continue
		}
		rendered.Segments = append(rendered.Segments, RenderedSegment{
			Role:    segment.Role,
			Content: tplengine.Render(segment.Template, tplCtx),
		})
	}
	return rendered
}

// includeSegment applies the When guard: an unguarded segment always
// passes; a guarded one needs a selection for its toggle, and when the
// guard lists option ids the selection must intersect them (membership for
// single groups, set intersection for multi).
func includeSegment(segment *Segment, toggles Selections) bool {
	if segment.When == nil {
		return true
	}
	selection, present := toggles[segment.When.ToggleID]
	if !present {
		return false
	}
	if s, isStr := selection.(string); isStr && s == "" {
		return false
	}
	if len(segment.When.OptionIDs) == 0 {
		return true
	}
	switch sel := selection.(type) {
	case string:
		for _, id := range segment.When.OptionIDs {
			if id == sel {
				return true
			}
		}
	case []string:
		for _, id := range segment.When.OptionIDs {
			for _, chosen := range sel {
				if id == chosen {
					return true
				}
			}
		}
	}
	return false
}

// LoadContextValues resolves every declared context source to a string.
// Dataset sources are declared but unimplemented and resolve to "".
func LoadContextValues(ctx context.Context, def *Definition, repo *content.Repository) (map[string]string, error) {
	log := logger.FromContext(ctx)
	values := make(map[string]string, len(def.Context))
	for i := range def.Context {
		spec := &def.Context[i]
		value, err := loadContextValue(spec, repo)
		if err != nil {
			return nil, fmt.Errorf("failed to load context %q for task %q: %w", spec.ID, def.ID, err)
		}
		if spec.Type == "dataset" {
			log.Warn("Dataset context is not yet supported; returning placeholder", "context_id", spec.ID, "task_id", def.ID)
		}
		values[spec.ID] = value
	}
	return values, nil
}

func loadContextValue(spec *ContextSource, repo *content.Repository) (string, error) {
	switch spec.Type {
	case "static":
		return spec.Value, nil
	case "markdown":
		markdown, err := repo.ReadFile(spec.Path)
		if err != nil {
			return "", err
		}
		if len(spec.IncludeHeadings) > 0 {
			return content.ExtractHeadings(markdown, spec.IncludeHeadings), nil
		}
		return strings.TrimSpace(markdown), nil
	case "excerpt":
		markdown, err := repo.ReadFile(spec.Path)
		if err != nil {
			return "", err
		}
		return content.ExtractExcerpt(markdown, spec.StartHeading, spec.EndHeading), nil
	case "dataset":
		return "", nil
	default:
		return "", fmt.Errorf("unsupported context source type %q", spec.Type)
	}
}

// toggleContext resolves selections to option objects: single groups map to
// the matching option, multi groups to the array of matches. Unknown
// selections are skipped.
func toggleContext(def *Definition, selections Selections) map[string]any {
	ctx := map[string]any{}
	for _, group := range def.Toggles.Groups() {
		raw, present := selections[group.ID]
		if !present {
			continue
		}
		switch group.Type {
		case ToggleSingle:
			id, ok := raw.(string)
			if !ok || id == "" {
				continue
			}
			option := group.Option(id)
			if option == nil {
				continue
			}
			ctx[group.ID] = map[string]any{
				"id":     option.ID,
				"label":  option.Label,
				"option": structToMap(*option),
				"group": map[string]any{
					"id":    group.ID,
					"label": group.Label,
					"type":  string(group.Type),
				},
			}
		case ToggleMulti:
			ids, ok := raw.([]string)
			if !ok {
				continue
			}
			var selected []any
			for _, id := range ids {
				option := group.Option(id)
				if option == nil {
					continue
				}
				selected = append(selected, map[string]any{
					"id":     option.ID,
					"label":  option.Label,
					"option": structToMap(*option),
				})
			}
			ctx[group.ID] = selected
		}
	}
	return ctx
}

// structToMap converts a schema struct to the map form the dotted-path
// interpreter walks.
func structToMap(v any) map[string]any {
	encoded, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(encoded, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func mustJSON(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}


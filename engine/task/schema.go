// Package task models declarative AI task definitions: the authored
// documents that describe one AI-assisted exercise, its inputs, toggles,
// prompt templates, persistence rules, and cache policy.
package task

// Status is the lifecycle state of a task definition.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// ToggleType distinguishes mutually exclusive groups from independently
// selectable ones.
type ToggleType string

const (
	ToggleSingle ToggleType = "single"
	ToggleMulti  ToggleType = "multi"
)

// Role tags a prompt segment.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ResponseFormatType selects how the provider response is interpreted.
type ResponseFormatType string

const (
	FormatMarkdown   ResponseFormatType = "markdown"
	FormatJSON       ResponseFormatType = "json"
	FormatStructured ResponseFormatType = "structured"
)

// CaptureMode selects how a data-capture row is written.
type CaptureMode string

const (
	CaptureInsert CaptureMode = "insert"
	CaptureUpsert CaptureMode = "upsert"
)

// CacheStrategyPromptHash is the only supported cache strategy.
const CacheStrategyPromptHash = "prompt-hash"

// Definition is one authored AI task. Loaded fresh per request and
// immutable for the request's duration.
type Definition struct {
	Version     string          `json:"version"`
	ID          string          `json:"id"`
	ModuleID    string          `json:"moduleId"`
	Status      Status          `json:"status,omitempty"`
	Metadata    Metadata        `json:"metadata"`
	Placement   Placement       `json:"placement"`
	UI          UISpec          `json:"ui"`
	Toggles     *Toggles        `json:"toggles,omitempty"`
	Inputs      []Input         `json:"inputs"`
	Context     []ContextSource `json:"context,omitempty"`
	Prompt      Prompt          `json:"prompt"`
	DataCapture *DataCapture    `json:"dataCapture,omitempty"`
	Cache       *CacheStrategy  `json:"cache,omitempty"`
	Telemetry   *Telemetry      `json:"telemetry,omitempty"`
}

// Metadata carries author-facing descriptive fields.
type Metadata struct {
	Title                    string         `json:"title"`
	Summary                  string         `json:"summary,omitempty"`
	Tags                     []string       `json:"tags,omitempty"`
	EstimatedDurationMinutes float64        `json:"estimatedDurationMinutes,omitempty"`
	Author                   string         `json:"author,omitempty"`
	RubricID                 string         `json:"rubricId,omitempty"`
}

// Placement anchors the task inside a rendered course page.
type Placement struct {
	PageSlug string  `json:"pageSlug"`
	AnchorID string  `json:"anchorId"`
	Order    float64 `json:"order,omitempty"`
}

// UISpec names the frontend component that renders the task.
type UISpec struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props,omitempty"`
}

// Toggles holds the named toggle slots plus any additional groups.
type Toggles struct {
	Difficulty *ToggleGroup  `json:"difficulty,omitempty"`
	Persona    *ToggleGroup  `json:"persona,omitempty"`
	Additional []ToggleGroup `json:"additional,omitempty"`
}

// Groups flattens all toggle groups in slot order.
func (t *Toggles) Groups() []ToggleGroup {
	if t == nil {
		return nil
	}
	var groups []ToggleGroup
	if t.Difficulty != nil {
		groups = append(groups, *t.Difficulty)
	}
	if t.Persona != nil {
		groups = append(groups, *t.Persona)
	}
	groups = append(groups, t.Additional...)
	return groups
}

// ToggleGroup is a named option set altering prompt content.
type ToggleGroup struct {
	ID            string         `json:"id"`
	Label         string         `json:"label"`
	Type          ToggleType     `json:"type"`
	Description   string         `json:"description,omitempty"`
	DefaultValue  any            `json:"defaultValue,omitempty"`
	Options       []ToggleOption `json:"options"`
	UI            *ToggleUISpec  `json:"ui,omitempty"`
	ExposeAsInput bool           `json:"exposeAsInput,omitempty"`
}

// Option returns the option with the given id, or nil.
func (g *ToggleGroup) Option(id string) *ToggleOption {
	for i := range g.Options {
		if g.Options[i].ID == id {
			return &g.Options[i]
		}
	}
	return nil
}

// ToggleOption is one selectable value with optional per-role prompt
// injections.
type ToggleOption struct {
	ID               string              `json:"id"`
	Label            string              `json:"label"`
	Description      string              `json:"description,omitempty"`
	PromptInjections map[string][]string `json:"promptInjections,omitempty"`
	Metadata         map[string]any      `json:"metadata,omitempty"`
}

// ToggleUISpec selects the frontend control for a toggle group.
type ToggleUISpec struct {
	Control string  `json:"control,omitempty"`
	Order   float64 `json:"order,omitempty"`
}

// Input is one declared user input. The Kind field discriminates the
// variant; the validator dispatches on it exactly once, so downstream
// consumers can treat the struct as already-checked.
type Input struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`

	// file
	Accept    []string `json:"accept,omitempty"`
	MaxSizeMB float64  `json:"maxSizeMB,omitempty"`
	Storage   string   `json:"storage,omitempty"`

	// text, textarea
	Placeholder string  `json:"placeholder,omitempty"`
	MaxLength   float64 `json:"maxLength,omitempty"`

	// select, radio, pill
	Options        []EnumOption `json:"options,omitempty"`
	SourceToggleID string       `json:"sourceToggleId,omitempty"`

	// checkbox uses a boolean default; enum kinds use a string default.
	DefaultValue any `json:"defaultValue,omitempty"`
}

// EnumOption is one choice of an enum-kind input.
type EnumOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// ContextSource declares a named value injected into the template context.
// Type discriminates the variant: markdown, excerpt, static, or dataset.
type ContextSource struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// markdown, excerpt
	Path            string   `json:"path,omitempty"`
	IncludeHeadings []string `json:"includeHeadings,omitempty"`
	StartHeading    string   `json:"startHeading,omitempty"`
	EndHeading      string   `json:"endHeading,omitempty"`

	// static
	Value string `json:"value,omitempty"`

	// dataset (declared but unimplemented)
	Table  string         `json:"table,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
	Select []string       `json:"select,omitempty"`
}

// Prompt is the ordered list of role-tagged template segments plus the
// expected response format.
type Prompt struct {
	Version        string          `json:"version,omitempty"`
	Segments       []Segment       `json:"segments"`
	ResponseFormat *ResponseFormat `json:"responseFormat,omitempty"`
}

// Segment is one conditionally included template fragment.
type Segment struct {
	Role     Role   `json:"role"`
	Template string `json:"template"`
	When     *Guard `json:"when,omitempty"`
}

// Guard conditions a segment on a toggle selection. When OptionIDs is
// non-empty the selection must intersect it.
type Guard struct {
	ToggleID  string   `json:"toggleId,omitempty"`
	OptionIDs []string `json:"optionIds,omitempty"`
}

// ResponseFormat declares how the provider response is requested and parsed.
type ResponseFormat struct {
	Type   ResponseFormatType `json:"type"`
	Schema map[string]any     `json:"schema,omitempty"`
}

// DataCapture declares the templated persistence executed after a
// successful provider call.
type DataCapture struct {
	StoreRawResponse bool               `json:"storeRawResponse,omitempty"`
	Operations       []CaptureOperation `json:"operations"`
}

// CaptureOperation is one templated insert or upsert against a named table.
type CaptureOperation struct {
	Table          string         `json:"table"`
	Operation      CaptureMode    `json:"operation"`
	ConflictTarget []string       `json:"conflictTarget,omitempty"`
	Fields         []CaptureField `json:"fields"`
}

// CaptureField maps a rendered template value onto a column.
type CaptureField struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// CacheStrategy is the task-declared cache policy. A nil strategy, a
// disabled flag, or a non-positive TTL disables caching entirely.
type CacheStrategy struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

// Active reports whether the prompt-hash cache applies to this task. The
// read and write paths additionally require a positive TTL.
func (c *CacheStrategy) Active() bool {
	if c == nil {
		return false
	}
	if c.Strategy != CacheStrategyPromptHash {
		return false
	}
	return c.Enabled == nil || *c.Enabled
}

// Telemetry carries the event name emitted for analytics.
type Telemetry struct {
	EventName  string         `json:"eventName,omitempty"`
	Additional map[string]any `json:"additional,omitempty"`
}

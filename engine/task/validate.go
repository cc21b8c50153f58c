package task

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidateOptions scope a validation run to its source file and containing
// module folder.
type ValidateOptions struct {
	Source           string
	ExpectedModuleID string
}

var (
	inputKinds          = set("file", "text", "textarea", "select", "radio", "pill", "checkbox")
	toggleTypes         = set(string(ToggleSingle), string(ToggleMulti))
	promptRoles         = set(string(RoleSystem), string(RoleUser), string(RoleAssistant))
	responseFormatTypes = set(string(FormatMarkdown), string(FormatJSON), string(FormatStructured))
	cacheStrategies     = set(CacheStrategyPromptHash)
	captureModes        = set(string(CaptureInsert), string(CaptureUpsert))
	toggleControls      = set("select", "radio", "pill")
	injectionRoles      = []string{"system", "user", "assistant"}
	fileStorages        = set("remote", "inline")
	statuses            = set(string(StatusDraft), string(StatusActive), string(StatusDeprecated))
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// Validate asserts that raw conforms to the task-definition grammar. It
// collects every violation in one pass; on success the document is decoded
// into a typed Definition.
func Validate(raw any, opts ValidateOptions) (*Definition, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, &ValidationError{
			Source:     opts.Source,
			Violations: []string{"Task definition must be a JSON object."},
		}
	}
	v := &collector{}
	validateTopLevel(doc, opts, v)
	validateMetadata(doc["metadata"], v)
	validatePlacement(doc["placement"], v)
	validateUI(doc["ui"], v)
	validateToggles(doc["toggles"], v)
	validateInputs(doc["inputs"], v)
	validateContext(doc["context"], v)
	validatePrompt(doc["prompt"], v)
	validateDataCapture(doc["dataCapture"], v)
	validateCache(doc["cache"], v)
	validateTelemetry(doc["telemetry"], v)
	if len(v.list) > 0 {
		return nil, &ValidationError{Source: opts.Source, Violations: v.list}
	}
	def, err := decodeDefinition(doc)
	if err != nil {
		return nil, &ValidationError{
			Source:     opts.Source,
			Violations: []string{fmt.Sprintf("Task definition could not be decoded: %v.", err)},
		}
	}
	return def, nil
}

func decodeDefinition(doc map[string]any) (*Definition, error) {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var def Definition
	if err := json.Unmarshal(encoded, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

type collector struct {
	list []string
}

func (c *collector) addf(format string, args ...any) {
	c.list = append(c.list, fmt.Sprintf(format, args...))
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isStringSlice(v any) bool {
	s, ok := asSlice(v)
	if !ok {
		return false
	}
	for _, item := range s {
		if !isString(item) {
			return false
		}
	}
	return true
}

func inSet(v any, allowed map[string]struct{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, ok = allowed[s]
	return ok
}

func setValues(allowed map[string]struct{}, order []string) string {
	var kept []string
	for _, v := range order {
		if _, ok := allowed[v]; ok {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ", ")
}

func validateTopLevel(doc map[string]any, opts ValidateOptions, v *collector) {
	if !nonEmptyString(doc["version"]) {
		v.addf("`version` must be a non-empty string.")
	}
	if !nonEmptyString(doc["id"]) {
		v.addf("`id` must be a non-empty string.")
	}
	if !nonEmptyString(doc["moduleId"]) {
		v.addf("`moduleId` must be a non-empty string.")
	}
	if opts.ExpectedModuleID != "" && doc["moduleId"] != opts.ExpectedModuleID {
		v.addf("`moduleId` must match the parent module (%s).", opts.ExpectedModuleID)
	}
	if status, present := doc["status"]; present && !inSet(status, statuses) {
		v.addf("`status` must be one of \"draft\", \"active\", or \"deprecated\" if provided.")
	}
}

func validateMetadata(metadata any, v *collector) {
	m, ok := asMap(metadata)
	if !ok {
		v.addf("`metadata` must be an object with at least a `title`.")
		return
	}
	if !nonEmptyString(m["title"]) {
		v.addf("`metadata.title` must be a non-empty string.")
	}
	if val, present := m["summary"]; present && !isString(val) {
		v.addf("`metadata.summary` must be a string when provided.")
	}
	if val, present := m["tags"]; present && !isStringSlice(val) {
		v.addf("`metadata.tags` must be an array of strings when provided.")
	}
	if val, present := m["estimatedDurationMinutes"]; present && !isNumber(val) {
		v.addf("`metadata.estimatedDurationMinutes` must be a number when provided.")
	}
	if val, present := m["author"]; present && !isString(val) {
		v.addf("`metadata.author` must be a string when provided.")
	}
	if val, present := m["rubricId"]; present && !isString(val) {
		v.addf("`metadata.rubricId` must be a string when provided.")
	}
}

func validatePlacement(placement any, v *collector) {
	m, ok := asMap(placement)
	if !ok {
		v.addf("`placement` must be an object containing `pageSlug` and `anchorId`.")
		return
	}
	if !nonEmptyString(m["pageSlug"]) {
		v.addf("`placement.pageSlug` must be a non-empty string.")
	}
	if !nonEmptyString(m["anchorId"]) {
		v.addf("`placement.anchorId` must be a non-empty string.")
	}
	if val, present := m["order"]; present && !isNumber(val) {
		v.addf("`placement.order` must be a number when provided.")
	}
}

func validateUI(ui any, v *collector) {
	m, ok := asMap(ui)
	if !ok {
		v.addf("`ui` must be an object containing a `component` string.")
		return
	}
	if !nonEmptyString(m["component"]) {
		v.addf("`ui.component` must be a non-empty string.")
	}
	if val, present := m["props"]; present {
		if _, ok := asMap(val); !ok {
			v.addf("`ui.props` must be an object when provided.")
		}
	}
}

func validateToggles(toggles any, v *collector) {
	if toggles == nil {
		return
	}
	m, ok := asMap(toggles)
	if !ok {
		v.addf("`toggles` must be an object when provided.")
		return
	}
	if val, present := m["difficulty"]; present {
		validateToggleGroup(val, "toggles.difficulty", v)
	}
	if val, present := m["persona"]; present {
		validateToggleGroup(val, "toggles.persona", v)
	}
	if val, present := m["additional"]; present {
		groups, ok := asSlice(val)
		if !ok {
			v.addf("`toggles.additional` must be an array of toggle definitions when provided.")
			return
		}
		for i, group := range groups {
			validateToggleGroup(group, fmt.Sprintf("toggles.additional[%d]", i), v)
		}
	}
}

func validateToggleGroup(toggle any, path string, v *collector) {
	m, ok := asMap(toggle)
	if !ok {
		v.addf("`%s` must be an object.", path)
		return
	}
	if !nonEmptyString(m["id"]) {
		v.addf("`%s.id` must be a non-empty string.", path)
	}
	if !nonEmptyString(m["label"]) {
		v.addf("`%s.label` must be a non-empty string.", path)
	}
	if !inSet(m["type"], toggleTypes) {
		v.addf("`%s.type` must be either \"single\" or \"multi\".", path)
	}
	validateToggleOptions(m["options"], path, v)
	validateToggleGroupExtras(m, path, v)
}

func validateToggleOptions(options any, path string, v *collector) {
	list, ok := asSlice(options)
	if !ok || len(list) == 0 {
		v.addf("`%s.options` must be a non-empty array.", path)
		return
	}
	for i, option := range list {
		optPath := fmt.Sprintf("%s.options[%d]", path, i)
		m, ok := asMap(option)
		if !ok {
			v.addf("`%s` must be an object.", optPath)
			continue
		}
		if !nonEmptyString(m["id"]) {
			v.addf("`%s.id` must be a non-empty string.", optPath)
		}
		if !nonEmptyString(m["label"]) {
			v.addf("`%s.label` must be a non-empty string.", optPath)
		}
		if val, present := m["description"]; present && !isString(val) {
			v.addf("`%s.description` must be a string when provided.", optPath)
		}
		if val, present := m["promptInjections"]; present {
			validatePromptInjections(val, optPath, v)
		}
	}
}

func validatePromptInjections(injections any, optPath string, v *collector) {
	m, ok := asMap(injections)
	if !ok {
		v.addf("`%s.promptInjections` must be an object when provided.", optPath)
		return
	}
	for key := range m {
		allowed := false
		for _, role := range injectionRoles {
			if key == role {
				allowed = true
				break
			}
		}
		if !allowed {
			v.addf("`%s.promptInjections.%s` is not a valid role key.", optPath, key)
		}
	}
	for _, role := range injectionRoles {
		if val, present := m[role]; present && !isStringSlice(val) {
			v.addf("`%s.promptInjections.%s` must be an array of strings.", optPath, role)
		}
	}
}

func validateToggleGroupExtras(m map[string]any, path string, v *collector) {
	if val, present := m["ui"]; present {
		ui, ok := asMap(val)
		if !ok {
			v.addf("`%s.ui` must be an object when provided.", path)
		} else {
			if control, present := ui["control"]; present && !inSet(control, toggleControls) {
				v.addf("`%s.ui.control` must be \"select\", \"radio\", or \"pill\" when provided.", path)
			}
			if order, present := ui["order"]; present && !isNumber(order) {
				v.addf("`%s.ui.order` must be a number when provided.", path)
			}
		}
	}
	if val, present := m["description"]; present && !isString(val) {
		v.addf("`%s.description` must be a string when provided.", path)
	}
	if val, present := m["defaultValue"]; present && !isString(val) && !isStringSlice(val) {
		v.addf("`%s.defaultValue` must be a string or an array of strings.", path)
	}
	if val, present := m["exposeAsInput"]; present && !isBool(val) {
		v.addf("`%s.exposeAsInput` must be a boolean when provided.", path)
	}
}

func validateInputs(inputs any, v *collector) {
	list, ok := asSlice(inputs)
	if !ok {
		v.addf("`inputs` must be an array (empty array allowed).")
		return
	}
	for i, input := range list {
		validateInput(input, fmt.Sprintf("inputs[%d]", i), v)
	}
}

func validateInput(input any, path string, v *collector) {
	m, ok := asMap(input)
	if !ok {
		v.addf("`%s` must be an object.", path)
		return
	}
	if !nonEmptyString(m["id"]) {
		v.addf("`%s.id` must be a non-empty string.", path)
	}
	if !nonEmptyString(m["name"]) {
		v.addf("`%s.name` must be a non-empty string.", path)
	}
	if !nonEmptyString(m["label"]) {
		v.addf("`%s.label` must be a non-empty string.", path)
	}
	if val, present := m["description"]; present && !isString(val) {
		v.addf("`%s.description` must be a string when provided.", path)
	}
	if val, present := m["required"]; present && !isBool(val) {
		v.addf("`%s.required` must be a boolean when provided.", path)
	}
	kind, _ := m["kind"].(string)
	if !inSet(m["kind"], inputKinds) {
		v.addf("`%s.kind` must be one of %s.", path,
			setValues(inputKinds, []string{"file", "text", "textarea", "select", "radio", "pill", "checkbox"}))
		return
	}
	switch kind {
	case "file":
		validateFileInput(m, path, v)
	case "text", "textarea":
		validateTextInput(m, path, v)
	case "select", "radio", "pill":
		validateEnumInput(m, path, v)
	case "checkbox":
		if val, present := m["defaultValue"]; present && !isBool(val) {
			v.addf("`%s.defaultValue` must be a boolean when provided.", path)
		}
	}
}

func validateFileInput(m map[string]any, path string, v *collector) {
	accept, ok := asSlice(m["accept"])
	if !ok || len(accept) == 0 || !isStringSlice(m["accept"]) {
		v.addf("`%s.accept` must be a non-empty array of strings.", path)
	}
	if val, present := m["maxSizeMB"]; present && !isNumber(val) {
		v.addf("`%s.maxSizeMB` must be a number when provided.", path)
	}
	if val, present := m["storage"]; present && !inSet(val, fileStorages) {
		v.addf("`%s.storage` must be \"remote\" or \"inline\" when provided.", path)
	}
}

func validateTextInput(m map[string]any, path string, v *collector) {
	if val, present := m["placeholder"]; present && !isString(val) {
		v.addf("`%s.placeholder` must be a string when provided.", path)
	}
	if val, present := m["maxLength"]; present && !isNumber(val) {
		v.addf("`%s.maxLength` must be a number when provided.", path)
	}
}

func validateEnumInput(m map[string]any, path string, v *collector) {
	options, ok := asSlice(m["options"])
	if !ok || len(options) == 0 {
		v.addf("`%s.options` must be a non-empty array.", path)
	} else {
		for i, option := range options {
			optPath := fmt.Sprintf("%s.options[%d]", path, i)
			om, ok := asMap(option)
			if !ok {
				v.addf("`%s` must be an object.", optPath)
				continue
			}
			if !nonEmptyString(om["value"]) {
				v.addf("`%s.value` must be a non-empty string.", optPath)
			}
			if !nonEmptyString(om["label"]) {
				v.addf("`%s.label` must be a non-empty string.", optPath)
			}
			if val, present := om["description"]; present && !isString(val) {
				v.addf("`%s.description` must be a string when provided.", optPath)
			}
		}
	}
	if val, present := m["defaultValue"]; present && !isString(val) {
		v.addf("`%s.defaultValue` must be a string when provided.", path)
	}
	if val, present := m["sourceToggleId"]; present && !isString(val) {
		v.addf("`%s.sourceToggleId` must be a string when provided.", path)
	}
}

func validateContext(context any, v *collector) {
	if context == nil {
		return
	}
	list, ok := asSlice(context)
	if !ok {
		v.addf("`context` must be an array when provided.")
		return
	}
	for i, entry := range list {
		validateContextEntry(entry, fmt.Sprintf("context[%d]", i), v)
	}
}

func validateContextEntry(entry any, path string, v *collector) {
	m, ok := asMap(entry)
	if !ok {
		v.addf("`%s` must be an object.", path)
		return
	}
	if !nonEmptyString(m["id"]) {
		v.addf("`%s.id` must be a non-empty string.", path)
	}
	typ, ok := m["type"].(string)
	if !ok {
		v.addf("`%s.type` must be a string.", path)
		return
	}
	switch typ {
	case "markdown":
		if !nonEmptyString(m["path"]) {
			v.addf("`%s.path` must be a non-empty string for markdown context.", path)
		}
		if val, present := m["includeHeadings"]; present && !isStringSlice(val) {
			v.addf("`%s.includeHeadings` must be an array of strings when provided.", path)
		}
	case "excerpt":
		if !nonEmptyString(m["path"]) {
			v.addf("`%s.path` must be a non-empty string for excerpt context.", path)
		}
		if val, present := m["startHeading"]; present && !isString(val) {
			v.addf("`%s.startHeading` must be a string when provided.", path)
		}
		if val, present := m["endHeading"]; present && !isString(val) {
			v.addf("`%s.endHeading` must be a string when provided.", path)
		}
	case "static":
		if !isString(m["value"]) {
			v.addf("`%s.value` must be a string for static context.", path)
		}
	case "dataset":
		if !nonEmptyString(m["table"]) {
			v.addf("`%s.table` must be a non-empty string for dataset context.", path)
		}
		if val, present := m["select"]; present && !isStringSlice(val) {
			v.addf("`%s.select` must be an array of strings when provided.", path)
		}
		if val, present := m["filter"]; present {
			if _, ok := asMap(val); !ok {
				v.addf("`%s.filter` must be an object when provided.", path)
			}
		}
	default:
		v.addf("`%s.type` must be one of \"markdown\", \"excerpt\", \"static\", or \"dataset\".", path)
	}
}

func validatePrompt(prompt any, v *collector) {
	m, ok := asMap(prompt)
	if !ok {
		v.addf("`prompt` must be an object with a `segments` array.")
		return
	}
	segments, ok := asSlice(m["segments"])
	if !ok || len(segments) == 0 {
		v.addf("`prompt.segments` must be a non-empty array.")
	} else {
		for i, segment := range segments {
			validatePromptSegment(segment, fmt.Sprintf("prompt.segments[%d]", i), v)
		}
	}
	if val, present := m["responseFormat"]; present {
		validateResponseFormat(val, v)
	}
}

func validatePromptSegment(segment any, path string, v *collector) {
	m, ok := asMap(segment)
	if !ok {
		v.addf("`%s` must be an object.", path)
		return
	}
	if !inSet(m["role"], promptRoles) {
		v.addf("`%s.role` must be one of \"system\", \"user\", or \"assistant\".", path)
	}
	if !nonEmptyString(m["template"]) {
		v.addf("`%s.template` must be a non-empty string.", path)
	}
	if val, present := m["when"]; present {
		when, ok := asMap(val)
		if !ok {
			v.addf("`%s.when` must be an object when provided.", path)
			return
		}
		if toggleID, present := when["toggleId"]; present && !isString(toggleID) {
			v.addf("`%s.when.toggleId` must be a string when provided.", path)
		}
		if optionIDs, present := when["optionIds"]; present && !isStringSlice(optionIDs) {
			v.addf("`%s.when.optionIds` must be an array of strings when provided.", path)
		}
	}
}

func validateResponseFormat(format any, v *collector) {
	m, ok := asMap(format)
	if !ok {
		v.addf("`prompt.responseFormat` must be an object when provided.")
		return
	}
	if !inSet(m["type"], responseFormatTypes) {
		v.addf("`prompt.responseFormat.type` must be \"markdown\", \"json\", or \"structured\".")
	}
	if val, present := m["schema"]; present {
		if _, ok := asMap(val); !ok {
			v.addf("`prompt.responseFormat.schema` must be an object when provided.")
		}
	}
}

func validateDataCapture(dataCapture any, v *collector) {
	if dataCapture == nil {
		return
	}
	m, ok := asMap(dataCapture)
	if !ok {
		v.addf("`dataCapture` must be an object when provided.")
		return
	}
	if val, present := m["storeRawResponse"]; present && !isBool(val) {
		v.addf("`dataCapture.storeRawResponse` must be a boolean when provided.")
	}
	operations, ok := asSlice(m["operations"])
	if !ok || len(operations) == 0 {
		v.addf("`dataCapture.operations` must be a non-empty array.")
		return
	}
	for i, operation := range operations {
		validateCaptureOperation(operation, fmt.Sprintf("dataCapture.operations[%d]", i), v)
	}
}

func validateCaptureOperation(operation any, path string, v *collector) {
	m, ok := asMap(operation)
	if !ok {
		v.addf("`%s` must be an object.", path)
		return
	}
	if !nonEmptyString(m["table"]) {
		v.addf("`%s.table` must be a non-empty string.", path)
	}
	mode, _ := m["operation"].(string)
	if !inSet(m["operation"], captureModes) {
		v.addf("`%s.operation` must be \"insert\" or \"upsert\".", path)
	}
	if val, present := m["conflictTarget"]; present {
		if !isStringSlice(val) {
			v.addf("`%s.conflictTarget` must be an array of strings when provided.", path)
		} else if mode == string(CaptureInsert) {
			v.addf("`%s.conflictTarget` is only meaningful for upsert operations.", path)
		}
	}
	fields, ok := asSlice(m["fields"])
	if !ok || len(fields) == 0 {
		v.addf("`%s.fields` must be a non-empty array.", path)
		return
	}
	for i, field := range fields {
		fieldPath := fmt.Sprintf("%s.fields[%d]", path, i)
		fm, ok := asMap(field)
		if !ok {
			v.addf("`%s` must be an object.", fieldPath)
			continue
		}
		if !nonEmptyString(fm["column"]) {
			v.addf("`%s.column` must be a non-empty string.", fieldPath)
		}
		if !nonEmptyString(fm["value"]) {
			v.addf("`%s.value` must be a non-empty string.", fieldPath)
		}
	}
}

func validateCache(cache any, v *collector) {
	if cache == nil {
		return
	}
	m, ok := asMap(cache)
	if !ok {
		v.addf("`cache` must be an object when provided.")
		return
	}
	if val, present := m["enabled"]; present && !isBool(val) {
		v.addf("`cache.enabled` must be a boolean when provided.")
	}
	if val, present := m["strategy"]; present && !inSet(val, cacheStrategies) {
		v.addf("`cache.strategy` must be \"prompt-hash\" when provided.")
	}
	if val, present := m["ttlSeconds"]; present {
		if n, ok := numberValue(val); !ok || n <= 0 {
			v.addf("`cache.ttlSeconds` must be a positive number when provided.")
		}
	}
}

func validateTelemetry(telemetry any, v *collector) {
	if telemetry == nil {
		return
	}
	m, ok := asMap(telemetry)
	if !ok {
		v.addf("`telemetry` must be an object when provided.")
		return
	}
	if val, present := m["eventName"]; present && !isString(val) {
		v.addf("`telemetry.eventName` must be a string when provided.")
	}
	if val, present := m["additional"]; present {
		if _, ok := asMap(val); !ok {
			v.addf("`telemetry.additional` must be an object when provided.")
		}
	}
}

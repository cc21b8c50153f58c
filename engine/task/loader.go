package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/taskgate/taskgate/engine/content"
)

const tasksDirName = "ai-tasks"

// Loader reads task definitions from the sandboxed content tree. Definitions
// are parsed and validated fresh on every call; nothing is cached in
// process, so edits to authored content take effect immediately.
type Loader struct {
	repo *content.Repository
}

// NewLoader creates a loader over the given content repository.
func NewLoader(repo *content.Repository) *Loader {
	return &Loader{repo: repo}
}

// Repository exposes the underlying content repository for callers that
// also resolve context sources.
func (l *Loader) Repository() *content.Repository { return l.repo }

// Load scans `<moduleID>/ai-tasks/` for the definition whose id matches
// taskID. Every candidate file is validated as it is read, so a broken
// definition in the module surfaces as a ValidationError even when a later
// file would have matched.
func (l *Loader) Load(_ context.Context, moduleID, taskID string) (*Definition, error) {
	dir := path.Join(moduleID, tasksDirName)
	names, err := l.repo.ListDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ModuleID: moduleID, TaskID: taskID}
		}
		return nil, fmt.Errorf("listing task definitions in %s: %w", dir, err)
	}
	for _, name := range names {
		if !isDefinitionFile(name) {
			continue
		}
		rel := path.Join(dir, name)
		raw, err := l.parseFile(rel)
		if err != nil {
			return nil, err
		}
		def, err := Validate(raw, ValidateOptions{Source: rel, ExpectedModuleID: moduleID})
		if err != nil {
			return nil, err
		}
		if def.ID == taskID {
			return def, nil
		}
	}
	return nil, &NotFoundError{ModuleID: moduleID, TaskID: taskID}
}

func isDefinitionFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func (l *Loader) parseFile(rel string) (map[string]any, error) {
	data, err := l.repo.ReadFile(rel)
	if err != nil {
		return nil, fmt.Errorf("reading task definition at %s: %w", rel, err)
	}
	var raw map[string]any
	if strings.EqualFold(path.Ext(rel), ".json") {
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			return nil, fmt.Errorf("parsing task definition JSON at %s: %w", rel, err)
		}
		return raw, nil
	}
	if err := yaml.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing task definition YAML at %s: %w", rel, err)
	}
	return raw, nil
}

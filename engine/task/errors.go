package task

import (
	"fmt"
	"strings"
)

// NotFoundError reports that no task definition with the requested id exists
// in the module.
type NotFoundError struct {
	ModuleID string
	TaskID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("AI task %q not found in module %q", e.TaskID, e.ModuleID)
}

// ValidationError aggregates every violation found in a single validation
// pass so authors get a complete report instead of the first failure.
type ValidationError struct {
	Source     string
	Violations []string
}

func (e *ValidationError) Error() string {
	prefix := "AI task"
	if e.Source != "" {
		prefix = "AI task at " + e.Source
	}
	return fmt.Sprintf("%s is invalid\n- %s", prefix, strings.Join(e.Violations, "\n- "))
}

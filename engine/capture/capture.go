// Package capture persists structured rows declared by a task's data
// capture block, with template-rendered and type-coerced column values.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/taskgate/taskgate/engine/task"
	"github.com/taskgate/taskgate/pkg/tplengine"
)

// Store writes capture rows. Tables are declared by task definitions, not
// by this package.
type Store interface {
	Insert(ctx context.Context, table string, row map[string]any) error
	Upsert(ctx context.Context, table string, row map[string]any, conflictTarget []string) error
}

// Summary reports what ran, for the response metadata.
type Summary struct {
	Operations int      `json:"operations"`
	Tables     []string `json:"tables"`
}

// Executor runs the operations of one request in declaration order and
// stops at the first failure.
type Executor struct {
	store Store
}

func NewExecutor(store Store) *Executor {
	return &Executor{store: store}
}

// Execute runs every declared operation against the store. The returned
// summary covers only fully completed runs; any error aborts the batch.
func (e *Executor) Execute(ctx context.Context, dc *task.DataCapture, tplCtx map[string]any) (*Summary, error) {
	if dc == nil || len(dc.Operations) == 0 {
		return nil, nil
	}

	summary := &Summary{}
	for _, op := range dc.Operations {
		row := buildRow(&op, tplCtx)

		switch op.Operation {
		case task.CaptureInsert:
			if err := e.store.Insert(ctx, op.Table, row); err != nil {
				return nil, fmt.Errorf("data capture insert failed on table %q: %w", op.Table, err)
			}
		case task.CaptureUpsert:
			if err := e.store.Upsert(ctx, op.Table, row, op.ConflictTarget); err != nil {
				return nil, fmt.Errorf("data capture upsert failed on table %q: %w", op.Table, err)
			}
		default:
			return nil, fmt.Errorf("unsupported data capture operation %q for table %q", op.Operation, op.Table)
		}

		summary.Operations++
		summary.Tables = append(summary.Tables, op.Table)
	}
	return summary, nil
}

func buildRow(op *task.CaptureOperation, tplCtx map[string]any) map[string]any {
	row := make(map[string]any, len(op.Fields))
	for _, field := range op.Fields {
		rendered := tplengine.Render(field.Value, tplCtx)
		row[field.Column] = coerceValue(rendered)
	}
	return row
}

// coerceValue recovers a typed column value from rendered template text.
// The checks run in a fixed order; the first match wins, and anything
// unmatched stays the original string, untrimmed.
func coerceValue(value string) any {
	trimmed := strings.TrimSpace(value)

	if trimmed == "" {
		return nil
	}
	if trimmed == "true" {
		return true
	}
	if trimmed == "false" {
		return false
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		// Round-trip guard: "1e3" or "007" stay strings.
		if strconv.FormatFloat(n, 'f', -1, 64) == trimmed {
			return n
		}
	}
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return value
}

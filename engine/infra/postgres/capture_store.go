package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
)

// identRe limits table and column names to plain SQL identifiers. Names
// come from task definitions on disk, never from request payloads, but
// they still get interpolated into SQL and are checked anyway.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CaptureStore writes data-capture rows into task-declared tables.
type CaptureStore struct {
	db DB
}

func NewCaptureStore(db DB) *CaptureStore {
	return &CaptureStore{db: db}
}

func (s *CaptureStore) Insert(ctx context.Context, table string, row map[string]any) error {
	columns, values, err := orderedColumns(table, row)
	if err != nil {
		return err
	}
	query, args, err := squirrel.Insert(table).
		Columns(columns...).
		Values(values...).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building capture insert: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting capture row: %w", err)
	}
	return nil
}

func (s *CaptureStore) Upsert(ctx context.Context, table string, row map[string]any, conflictTarget []string) error {
	columns, values, err := orderedColumns(table, row)
	if err != nil {
		return err
	}
	for _, column := range conflictTarget {
		if !identRe.MatchString(column) {
			return fmt.Errorf("invalid conflict target column %q", column)
		}
	}

	builder := squirrel.Insert(table).
		Columns(columns...).
		Values(values...).
		PlaceholderFormat(squirrel.Dollar)

	if len(conflictTarget) > 0 {
		assignments := make([]string, 0, len(columns))
		for _, column := range columns {
			assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
		}
		builder = builder.Suffix(fmt.Sprintf(
			"ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(conflictTarget, ", "),
			strings.Join(assignments, ", "),
		))
	} else {
		builder = builder.Suffix("ON CONFLICT DO NOTHING")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("building capture upsert: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting capture row: %w", err)
	}
	return nil
}

func orderedColumns(table string, row map[string]any) ([]string, []any, error) {
	if !identRe.MatchString(table) {
		return nil, nil, fmt.Errorf("invalid capture table name %q", table)
	}
	if len(row) == 0 {
		return nil, nil, fmt.Errorf("capture row for table %q has no columns", table)
	}

	columns := make([]string, 0, len(row))
	for column := range row {
		if !identRe.MatchString(column) {
			return nil, nil, fmt.Errorf("invalid capture column name %q", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	values := make([]any, 0, len(columns))
	for _, column := range columns {
		values = append(values, row[column])
	}
	return columns, values, nil
}

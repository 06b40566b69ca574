package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/askdw/askdw/internal/observability"
)

// Result is the captured output of one executed statement.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// Run executes sqlText and captures the result set. Trailing semicolons are
// stripped first since models occasionally emit them despite instructions.
// Capture stops at the configured row cap; failures wrap ErrQuery.
func (w *Warehouse) Run(ctx context.Context, sqlText string) (*Result, error) {
	start := time.Now()
	result, err := w.run(ctx, sqlText)
	if err != nil {
		observability.ObserveWarehouseQuery(0, err, time.Since(start))
		return nil, err
	}
	observability.ObserveWarehouseQuery(len(result.Rows), nil, time.Since(start))
	return result, nil
}

func (w *Warehouse) run(ctx context.Context, sqlText string) (*Result, error) {
	stmt := stripTrailingSemicolons(sqlText)
	if stmt == "" {
		return nil, fmt.Errorf("%w: empty statement", ErrQuery)
	}

	queryCtx, cancel := context.WithTimeout(ctx, w.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := w.db.QueryContext(queryCtx, stmt)
	if err != nil {
		w.logger.Debug("query failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= w.maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	result.Duration = time.Since(start)
	w.logger.Debug("query completed",
		"rows", len(result.Rows),
		"truncated", result.Truncated,
		"duration", result.Duration)
	return result, nil
}

// Text renders the result as a pipe-separated table: a header line followed
// by one line per row. This is what the summarization prompt and the terminal
// see.
func (r *Result) Text() string {
	if len(r.Columns) == 0 {
		return "(no result)"
	}

	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	for _, row := range r.Rows {
		b.WriteByte('\n')
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		b.WriteString(strings.Join(cells, " | "))
	}
	if r.Truncated {
		b.WriteString("\n... (result truncated)")
	}
	return b.String()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return t.Format(time.RFC3339)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// normalizeValues converts driver byte slices to strings so results render
// and serialize as text.
func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// sampleRowLimit is how many example rows each table contributes to the
// schema dump.
const sampleRowLimit = 3

// SchemaText returns a textual dump of every user table: columns with types
// and nullability, primary and foreign keys, and up to three sample rows.
// This raw text seeds the schema description once; it is never sent to the
// model per turn.
func (w *Warehouse) SchemaText(ctx context.Context) (string, error) {
	switch w.driver {
	case DriverPostgres:
		return w.schemaTextPostgres(ctx)
	case DriverSQLite:
		return w.schemaTextSQLite(ctx)
	default:
		return "", fmt.Errorf("%w: unsupported driver %q", ErrQuery, w.driver)
	}
}

type tableInfo struct {
	name        string
	columns     []columnInfo
	primaryKey  []string
	foreignKeys []foreignKeyInfo
}

type columnInfo struct {
	name     string
	dataType string
	nullable bool
}

type foreignKeyInfo struct {
	column    string
	refTable  string
	refColumn string
}

func (w *Warehouse) schemaTextPostgres(ctx context.Context) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, w.queryTimeout)
	defer cancel()

	names, err := w.listPostgresTables(queryCtx)
	if err != nil {
		return "", err
	}

	var blocks []string
	for _, name := range names {
		table := tableInfo{name: name}
		if table.columns, err = w.postgresColumns(queryCtx, name); err != nil {
			return "", err
		}
		if table.primaryKey, err = w.postgresPrimaryKey(queryCtx, name); err != nil {
			return "", err
		}
		if table.foreignKeys, err = w.postgresForeignKeys(queryCtx, name); err != nil {
			return "", err
		}

		sample, err := w.sampleRows(queryCtx, name)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, renderTable(table, sample))
	}

	return strings.Join(blocks, "\n\n"), nil
}

func (w *Warehouse) listPostgresTables(ctx context.Context) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %v", ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return names, nil
}

func (w *Warehouse) postgresColumns(ctx context.Context, table string) ([]columnInfo, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("%w: columns of %s: %v", ErrQuery, table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []columnInfo
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		cols = append(cols, columnInfo{
			name:     name,
			dataType: dataType,
			nullable: nullable != "NO",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return cols, nil
}

func (w *Warehouse) postgresPrimaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = 'public' AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("%w: primary key of %s: %v", ErrQuery, table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return cols, nil
}

func (w *Warehouse) postgresForeignKeys(ctx context.Context, table string) ([]foreignKeyInfo, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.table_schema = 'public' AND tc.table_name = $1 AND tc.constraint_type = 'FOREIGN KEY'`, table)
	if err != nil {
		return nil, fmt.Errorf("%w: foreign keys of %s: %v", ErrQuery, table, err)
	}
	defer func() { _ = rows.Close() }()

	var fks []foreignKeyInfo
	for rows.Next() {
		var fk foreignKeyInfo
		if err := rows.Scan(&fk.column, &fk.refTable, &fk.refColumn); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return fks, nil
}

func (w *Warehouse) schemaTextSQLite(ctx context.Context) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, w.queryTimeout)
	defer cancel()

	rows, err := w.db.QueryContext(queryCtx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("%w: list tables: %v", ErrQuery, err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return "", fmt.Errorf("%w: %v", ErrQuery, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return "", fmt.Errorf("%w: %v", ErrQuery, err)
	}
	_ = rows.Close()

	var blocks []string
	for _, name := range names {
		table := tableInfo{name: name}
		if err := w.sqliteTableInfo(queryCtx, &table); err != nil {
			return "", err
		}
		if err := w.sqliteForeignKeys(queryCtx, &table); err != nil {
			return "", err
		}

		sample, err := w.sampleRows(queryCtx, name)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, renderTable(table, sample))
	}

	return strings.Join(blocks, "\n\n"), nil
}

// sqliteTableInfo fills columns and primary key from PRAGMA table_info.
// PRAGMA arguments cannot be bound, so the identifier is quoted inline.
func (w *Warehouse) sqliteTableInfo(ctx context.Context, table *tableInfo) error {
	rows, err := w.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table.name)))
	if err != nil {
		return fmt.Errorf("%w: table_info of %s: %v", ErrQuery, table.name, err)
	}
	defer func() { _ = rows.Close() }()

	type pkCol struct {
		name string
		pos  int
	}
	var pkCols []pkCol
	for rows.Next() {
		var (
			cid      int
			name     string
			dataType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("%w: %v", ErrQuery, err)
		}
		table.columns = append(table.columns, columnInfo{
			name:     name,
			dataType: dataType,
			nullable: notNull == 0,
		})
		if pk > 0 {
			pkCols = append(pkCols, pkCol{name: name, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQuery, err)
	}

	sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].pos < pkCols[j].pos })
	for _, c := range pkCols {
		table.primaryKey = append(table.primaryKey, c.name)
	}
	return nil
}

func (w *Warehouse) sqliteForeignKeys(ctx context.Context, table *tableInfo) error {
	rows, err := w.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table.name)))
	if err != nil {
		return fmt.Errorf("%w: foreign_key_list of %s: %v", ErrQuery, table.name, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return fmt.Errorf("%w: %v", ErrQuery, err)
		}
		table.foreignKeys = append(table.foreignKeys, foreignKeyInfo{
			column:    from,
			refTable:  refTable,
			refColumn: to.String,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return nil
}

func (w *Warehouse) sampleRows(ctx context.Context, table string) (*Result, error) {
	stmt := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), sampleRowLimit)

	rows, err := w.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: sample rows of %s: %v", ErrQuery, table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	result := &Result{Columns: columns}
	for rows.Next() {
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
	return result, nil
}

func renderTable(table tableInfo, sample *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", table.name)

	b.WriteString("Columns:\n")
	for _, col := range table.columns {
		nullability := "NULL"
		if !col.nullable {
			nullability = "NOT NULL"
		}
		fmt.Fprintf(&b, "  %s %s %s\n", col.name, col.dataType, nullability)
	}

	if len(table.primaryKey) > 0 {
		fmt.Fprintf(&b, "Primary key: (%s)\n", strings.Join(table.primaryKey, ", "))
	}
	for _, fk := range table.foreignKeys {
		fmt.Fprintf(&b, "Foreign key: %s -> %s(%s)\n", fk.column, fk.refTable, fk.refColumn)
	}

	if sample != nil && len(sample.Rows) > 0 {
		b.WriteString("Sample rows:\n")
		for _, line := range strings.Split(sample.Text(), "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

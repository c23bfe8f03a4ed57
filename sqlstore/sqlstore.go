// Package sqlstore implements the engine's backend interface on top of a
// database/sql connection. It targets the MySQL dialect the generator
// emits.
package sqlstore

import (
	"database/sql"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/rangeql/rangeql/rql"
)

// ErrNoTransaction is returned when Commit or Rollback runs with no
// transaction open.
var ErrNoTransaction = errors.NewKind("no transaction in progress")

// Backend is a database/sql-backed rql.Backend. It is bound to a single
// connection stream, callers must not share one Backend across
// concurrent queries while a transaction is open.
type Backend struct {
	db *sql.DB
	tx *sql.Tx

	// windowFns caches the window-function capability probe, nil until
	// the first call.
	windowFns *bool
}

var _ rql.Backend = (*Backend)(nil)

// Open connects to a MySQL server and returns a backend over it.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New returns a backend over an existing handle.
func New(db *sql.DB) *Backend { return &Backend{db: db} }

// Close releases the underlying handle.
func (b *Backend) Close() error { return b.db.Close() }

// SupportsWindowFunctions probes the server once for window-function
// support and caches the verdict. The probe statement failing is the
// negative answer, not an error.
func (b *Backend) SupportsWindowFunctions(ctx *rql.Context) bool {
	if b.windowFns != nil {
		return *b.windowFns
	}
	rows, err := b.db.QueryContext(ctx, "SELECT SUM(1) OVER ()")
	ok := err == nil
	if ok {
		// Release the pooled connection the result set holds.
		rows.Close()
	}
	b.windowFns = &ok
	if !ok {
		logrus.WithError(err).Debug("backend has no window functions, using scalar fallback")
	}
	return ok
}

// Execute implements rql.Backend.
func (b *Backend) Execute(ctx *rql.Context, query string, args []interface{}) ([]rql.Row, error) {
	rows, err := b.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []rql.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(rql.Row, len(cols))
		for i, col := range cols {
			row[col] = normalize(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// BeginTransaction implements rql.Backend.
func (b *Backend) BeginTransaction() error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	b.tx = tx
	return nil
}

// Commit implements rql.Backend.
func (b *Backend) Commit() error {
	if b.tx == nil {
		return ErrNoTransaction.New()
	}
	err := b.tx.Commit()
	b.tx = nil
	return err
}

// Rollback implements rql.Backend.
func (b *Backend) Rollback() error {
	if b.tx == nil {
		return ErrNoTransaction.New()
	}
	err := b.tx.Rollback()
	b.tx = nil
	return err
}

// CreateTemporaryTable implements rql.Backend. The table is visible to
// the current connection only and dropped with it.
func (b *Backend) CreateTemporaryTable(ctx *rql.Context, name string, cols []rql.ColumnDef) error {
	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = quote(col.Name) + " " + col.Type.String()
	}
	stmt := "CREATE TEMPORARY TABLE " + quote(name) + " (" + strings.Join(defs, ", ") + ")"
	return b.exec(ctx, stmt, nil)
}

// InsertRows implements rql.Backend. All rows go in one multi-value
// insert, column order is the sorted key set of the first row.
func (b *Backend) InsertRows(ctx *rql.Context, table string, rows []rql.Row) error {
	if len(rows) == 0 {
		return nil
	}

	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quote(col)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(quote(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(rows)*len(cols))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		for _, col := range cols {
			args = append(args, row[col])
		}
	}
	return b.exec(ctx, sb.String(), args)
}

// PrimaryKeyColumns implements rql.Backend.
func (b *Backend) PrimaryKeyColumns(table string) ([]string, error) {
	rows, err := b.db.Query(`
		SELECT COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_NAME = ?
		  AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// query and exec route through the open transaction so temporary tables
// stay visible to the statements that read them.
func (b *Backend) query(ctx *rql.Context, stmt string, args []interface{}) (*sql.Rows, error) {
	if b.tx != nil {
		return b.tx.QueryContext(ctx, stmt, args...)
	}
	return b.db.QueryContext(ctx, stmt, args...)
}

func (b *Backend) exec(ctx *rql.Context, stmt string, args []interface{}) error {
	var err error
	if b.tx != nil {
		_, err = b.tx.ExecContext(ctx, stmt, args...)
	} else {
		_, err = b.db.ExecContext(ctx, stmt, args...)
	}
	return err
}

// normalize turns driver byte slices into strings so rows compare and
// serialize predictably.
func normalize(v interface{}) interface{} {
	if raw, ok := v.([]byte); ok {
		return string(raw)
	}
	return v
}

func quote(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

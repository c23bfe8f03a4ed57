package rql

// ColumnDef defines one column of a temporary table to be created on the
// backend.
type ColumnDef struct {
	Name string
	Type ColumnType
}

// Backend is an opaque SQL-executing backend. The engine never depends on a
// specific driver, it only needs these operations. All calls block until
// the backend answers or fails.
type Backend interface {
	// Execute runs a parameterized statement and returns its rows.
	Execute(ctx *Context, query string, params []interface{}) ([]Row, error)
	// BeginTransaction, Commit and Rollback delimit a transaction on the
	// underlying connection. Backends are not required to support nesting,
	// TxScope provides reentrancy on top of them.
	BeginTransaction() error
	Commit() error
	Rollback() error
	// CreateTemporaryTable creates a transaction-scoped table used to
	// materialize a temporary range.
	CreateTemporaryTable(ctx *Context, name string, cols []ColumnDef) error
	// InsertRows bulk-inserts rows into a previously created table.
	InsertRows(ctx *Context, table string, rows []Row) error
	// PrimaryKeyColumns returns the primary key column names of a table.
	PrimaryKeyColumns(table string) ([]string, error)
}

// JSONSource provides the documents of JSON-backed ranges. Each document is
// one flat Row.
type JSONSource interface {
	JSONRows(ctx *Context, source string) ([]Row, error)
}

// TxScope makes a backend's transaction reentrant by counting depth. Only
// the depth-zero begin and the matching commit or rollback touch the real
// connection. Savepoints are not supported, an inner rollback rolls back
// the whole scope.
type TxScope struct {
	backend Backend
	depth   int
}

// NewTxScope returns a transaction scope over the given backend.
func NewTxScope(backend Backend) *TxScope {
	return &TxScope{backend: backend}
}

// Begin opens the transaction if none is active and increments the depth.
func (t *TxScope) Begin() error {
	if t.depth == 0 {
		if err := t.backend.BeginTransaction(); err != nil {
			return err
		}
	}
	t.depth++
	return nil
}

// Commit decrements the depth and commits once it reaches zero.
func (t *TxScope) Commit() error {
	if t.depth == 0 {
		return nil
	}
	t.depth--
	if t.depth == 0 {
		return t.backend.Commit()
	}
	return nil
}

// Rollback decrements the depth and rolls back once it reaches zero.
func (t *TxScope) Rollback() error {
	if t.depth == 0 {
		return nil
	}
	t.depth--
	if t.depth == 0 {
		return t.backend.Rollback()
	}
	return nil
}

// Depth returns the current nesting depth.
func (t *TxScope) Depth() int { return t.depth }

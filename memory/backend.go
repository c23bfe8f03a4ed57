package memory

import (
	"sync"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/rangeql/rangeql/rql"
)

// ErrNoFixture is returned when a statement reaches the backend that no
// hook or fixture answers.
var ErrNoFixture = errors.NewKind("no fixture for statement: %s")

// Statement is one recorded backend call.
type Statement struct {
	Query string
	Args  []interface{}
}

// Backend is a scripted rql.Backend. Statements are answered by the
// OnExecute hook when set, then by exact-match fixtures. Every call is
// recorded so tests can assert on the generated SQL and the transaction
// choreography around it.
type Backend struct {
	mu sync.Mutex

	// OnExecute, when set, answers every Execute call.
	OnExecute func(query string, args []interface{}) ([]rql.Row, error)

	fixtures   map[string][]rql.Row
	statements []Statement
	primaryKey map[string][]string

	tempTables map[string][]rql.ColumnDef
	tempRows   map[string][]rql.Row

	begun, committed, rolledBack int
}

var _ rql.Backend = (*Backend)(nil)

// NewBackend returns an empty scripted backend.
func NewBackend() *Backend {
	return &Backend{
		fixtures:   map[string][]rql.Row{},
		primaryKey: map[string][]string{},
		tempTables: map[string][]rql.ColumnDef{},
		tempRows:   map[string][]rql.Row{},
	}
}

// Fix registers the rows a statement answers with.
func (b *Backend) Fix(query string, rows []rql.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fixtures[query] = rows
}

// SetPrimaryKey registers the primary key columns of a table.
func (b *Backend) SetPrimaryKey(table string, cols ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.primaryKey[table] = cols
}

// Statements returns the recorded statements in execution order.
func (b *Backend) Statements() []Statement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Statement(nil), b.statements...)
}

// TempRows returns the rows inserted into a temporary table.
func (b *Backend) TempRows(table string) []rql.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]rql.Row(nil), b.tempRows[table]...)
}

// TxCounts returns how many times each transaction operation ran.
func (b *Backend) TxCounts() (begun, committed, rolledBack int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.begun, b.committed, b.rolledBack
}

// Execute implements rql.Backend.
func (b *Backend) Execute(ctx *rql.Context, query string, args []interface{}) ([]rql.Row, error) {
	b.mu.Lock()
	b.statements = append(b.statements, Statement{Query: query, Args: args})
	hook := b.OnExecute
	rows, fixed := b.fixtures[query]
	b.mu.Unlock()

	if hook != nil {
		return hook(query, args)
	}
	if fixed {
		return rows, nil
	}
	return nil, ErrNoFixture.New(query)
}

// BeginTransaction implements rql.Backend.
func (b *Backend) BeginTransaction() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.begun++
	return nil
}

// Commit implements rql.Backend.
func (b *Backend) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.committed++
	return nil
}

// Rollback implements rql.Backend.
func (b *Backend) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolledBack++
	return nil
}

// CreateTemporaryTable implements rql.Backend.
func (b *Backend) CreateTemporaryTable(ctx *rql.Context, name string, cols []rql.ColumnDef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tempTables[name] = cols
	return nil
}

// InsertRows implements rql.Backend.
func (b *Backend) InsertRows(ctx *rql.Context, table string, rows []rql.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tempRows[table] = append(b.tempRows[table], rows...)
	return nil
}

// PrimaryKeyColumns implements rql.Backend.
func (b *Backend) PrimaryKeyColumns(table string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.primaryKey[table], nil
}

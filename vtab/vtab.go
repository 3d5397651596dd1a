// Package vtab defines the virtual-table protocol (spec.md §4.5, §6): the
// contract every storage backend — the in-memory MVCC module in this repo,
// and any out-of-scope persistent adapter — must implement so the planner
// and scheduler can drive it uniformly.
package vtab

import "github.com/Digithought/quereus-sub010/sql"

// ConstraintOp is a sargable WHERE-constraint operator extracted for
// xBestIndex (spec §4.1 "xBestIndex integration").
type ConstraintOp int

const (
	OpEq ConstraintOp = iota
	OpLt
	OpLte
	OpGt
	OpGte
	OpLike
)

// Constraint is one sargable constraint on a column, offered to a module's
// BestIndex call.
type Constraint struct {
	ColumnIndex int
	Op          ConstraintOp
	Usable      bool
	Expr        sql.Expression
}

// OrderByTerm is one ORDER BY column the planner would like the scan to
// satisfy without a separate Sort node.
type OrderByTerm struct {
	ColumnIndex int
	Descending  bool
}

// IndexInfo is everything the planner hands a module's BestIndex call:
// sargable constraints, requested order-by terms, and the bitmap of
// columns actually referenced by SELECT/WHERE/ORDER BY (spec §4.1).
type IndexInfo struct {
	Constraints []Constraint
	OrderBy     []OrderByTerm
	UsedColumns uint64
}

// ConstraintUsage tells the executor how to drive one input Constraint:
// which positional arg of Cursor.Filter's args it corresponds to (0 means
// "not used"), and whether the executor may skip re-checking it in a
// Filter node because the module already enforces it (spec §4.1, §8
// "xBestIndex round-trip").
type ConstraintUsage struct {
	ArgvIndex int
	Omit      bool
}

// IndexFlags are boolean hints a module can set on its BestIndexResult.
type IndexFlags int

const (
	IndexFlagUnique IndexFlags = 1 << iota
)

// BestIndexResult is a module's answer to a BestIndex call (spec §4.1).
type BestIndexResult struct {
	IdxNum          int
	IdxStr          string
	ConstraintUsage []ConstraintUsage // parallel to IndexInfo.Constraints
	OrderByConsumed bool
	EstimatedCost   float64
	EstimatedRows   int64
	IdxFlags        IndexFlags
}

// ConflictPolicy mirrors spec §4.5/§6's conflict-policy enum.
type ConflictPolicy int

const (
	ConflictAbort ConflictPolicy = iota
	ConflictIgnore
	ConflictReplace
	ConflictFail
	ConflictRollback
)

func (c ConflictPolicy) String() string {
	switch c {
	case ConflictAbort:
		return "ABORT"
	case ConflictIgnore:
		return "IGNORE"
	case ConflictReplace:
		return "REPLACE"
	case ConflictFail:
		return "FAIL"
	case ConflictRollback:
		return "ROLLBACK"
	default:
		return "?"
	}
}

// Cursor scans rows for one access path, opened by Connection.OpenCursor.
type Cursor interface {
	// Filter positions the cursor according to the idxNum/idxStr a prior
	// BestIndex call chose, with args supplying the values for every
	// constraint whose ConstraintUsage.ArgvIndex was > 0.
	Filter(ctx *sql.Context, idxNum int, idxStr string, args []sql.Value) error
	// Next advances and returns the next row, io.EOF when exhausted.
	Next(ctx *sql.Context) (sql.Row, error)
	Close(ctx *sql.Context) error
}

// Connection is one consumer session's handle to a table instance (spec
// §4.5 "Connection state"). It embeds sql.TxConnection for the transaction
// lifecycle (begin/commit/rollback/savepoints) and adds scan/mutate.
type Connection interface {
	sql.TxConnection
	OpenCursor(ctx *sql.Context) (Cursor, error)
	// Update performs one INSERT/UPDATE/DELETE atomically against the
	// connection's pending layer, per spec §4.5/§4.6. op selects which
	// half of flatRow is meaningful: RowOpInsert uses New() only,
	// RowOpDelete uses Old() only, RowOpUpdate uses both. Returns the
	// resulting primary key, or a NULL value if the write was dropped by
	// an IGNORE conflict policy.
	Update(ctx *sql.Context, op sql.RowOp, flatRow sql.FlatRow, policy ConflictPolicy) (sql.Value, error)
}

// Table is one registered virtual table instance, opening one Connection
// per consumer session (spec §4.5).
type Table interface {
	Schema() *sql.TableSchema
	OpenConnection(ctx *sql.Context) (Connection, error)
}

// Module is the pluggable backend behind a SQL table (spec §4.5, Glossary
// "Virtual table module"): memory (this repo), or an out-of-scope
// persistent adapter (LevelDB, IndexedDB, ...).
type Module interface {
	Name() string
	// BestIndex decides the access path for one scan (spec §4.1).
	BestIndex(ctx *sql.Context, schema *sql.TableSchema, info *IndexInfo) (*BestIndexResult, error)
	// Create instantiates a new Table for schema (called once at DDL
	// time; the schema's ModuleArgs configure the instance).
	Create(ctx *sql.Context, schema *sql.TableSchema) (Table, error)
}

// TableIndexer is an optional Table capability for backends that can add or
// drop a secondary index against already-populated data without rebuilding
// the table (spec §4.8 "indexesToCreate/Drop"). Package catalog type-asserts
// for it when applying CREATE INDEX/DROP INDEX DDL; a backend that doesn't
// implement it can only have the indexes its initial schema declared.
type TableIndexer interface {
	AddIndex(idx sql.Index) error
	DropIndex(name string) error
}

// Registry resolves a schema's declared module name to a Module
// implementation (spec §4.5 "xBestIndex modules... concrete modules
// implement it independently").
type Registry struct {
	modules map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

func (r *Registry) Register(m Module) {
	r.modules[m.Name()] = m
}

func (r *Registry) Lookup(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

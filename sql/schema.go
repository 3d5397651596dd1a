package sql

// Affinity is the declared storage affinity of a column, independent of the
// dynamic ValueKind any particular row happens to carry.
type Affinity uint8

const (
	AffinityInteger Affinity = iota
	AffinityReal
	AffinityText
	AffinityBlob
	AffinityNumeric
)

// ScalarType is the static type of a scalar plan node: an affinity plus
// nullability (spec §3 "Plan node").
type ScalarType struct {
	Affinity  Affinity
	Nullable  bool
	Collation string
}

// Column describes one column of a table schema.
type Column struct {
	Name      string
	Affinity  Affinity
	Nullable  bool
	Default   ScalarExpr // nil if no default
	Collation string
	Generated bool
	PKOrder   int // 0 = not part of the primary key, else 1-based position
}

// IndexColumn is one column participating in a primary key or secondary
// index, with its sort direction and collation.
type IndexColumn struct {
	ColumnIndex int
	Descending  bool
	Collation   string
}

// PrimaryKey is the ordered list of columns making up a table's primary key.
type PrimaryKey struct {
	Columns []IndexColumn
}

// RowOp identifies which DML operation is being performed, used as a mask
// bit for CHECK constraints (spec §3 invariants, §4.4).
type RowOp uint8

const (
	RowOpInsert RowOp = 1 << iota
	RowOpUpdate
	RowOpDelete
)

const RowOpAll = RowOpInsert | RowOpUpdate | RowOpDelete

// CheckConstraint is a CHECK expression scoped to the row operations it
// applies to.
type CheckConstraint struct {
	Name     string
	Expr     ScalarExpr
	Ops      RowOp
	Deferred bool
}

// Index describes a secondary index.
type Index struct {
	Name    string
	Columns []IndexColumn
	Unique  bool
}

// TableSchema is the full, immutable-after-registration definition of a
// table (spec §3 "Schema objects").
type TableSchema struct {
	Name        string
	SchemaName  string
	Columns     []Column
	PrimaryKey  PrimaryKey
	Checks      []CheckConstraint
	Indexes     []Index
	Module      string
	ModuleArgs  []string
	IsView      bool
	ViewQuery   string
	IsTemporary bool
	IsReadOnly  bool
}

func (t *TableSchema) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// RelationalType is the declared type of a relational plan node: its ordered
// column definitions, the key sets it guarantees, and whether it is
// read-only (spec §3 "Plan node").
type RelationalType struct {
	Columns  []Column
	Keys     [][]int // sets of column indices known to be unique
	ReadOnly bool
}

// ScalarExpr is an alias kept for readability at schema-definition call
// sites; it is the same interface as Expression (sql/node.go).
type ScalarExpr = Expression

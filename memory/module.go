package memory

import (
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

// Module is the in-memory MVCC virtual-table backend (spec §4.6). It is
// the only module shipped with this repo — a future persistent adapter
// (LevelDB, IndexedDB, ...) is explicitly out of scope (spec Non-goals)
// but would register against the same vtab.Registry.
type Module struct{}

var _ vtab.Module = (*Module)(nil)

func NewModule() *Module { return &Module{} }

func (m *Module) Name() string { return "memory" }

func (m *Module) Create(ctx *sql.Context, schema *sql.TableSchema) (vtab.Table, error) {
	return newTable(schema), nil
}

// BestIndex chooses among, in preference order: primary-key equality,
// secondary-index equality, primary-key range (leading column only),
// secondary-index range (leading column only), full scan — matching spec
// §4.6's scan description. Composite range predicates (equality on a
// prefix plus a range on the next column) are not attempted; only a
// single leading-column range is considered sargable, a deliberate scope
// reduction recorded in DESIGN.md rather than a planner defect to silently
// work around.
func (m *Module) BestIndex(ctx *sql.Context, schema *sql.TableSchema, info *vtab.IndexInfo) (*vtab.BestIndexResult, error) {
	pkCols := schema.PrimaryKey.Columns

	if len(pkCols) > 0 {
		if usage, ok := tryEquality(pkCols, info.Constraints); ok {
			return &vtab.BestIndexResult{
				IdxNum: idxPKEquality, IdxStr: "pk",
				ConstraintUsage: usage, EstimatedCost: 1, EstimatedRows: 1,
				IdxFlags: vtab.IndexFlagUnique,
			}, nil
		}
	}
	for _, idx := range schema.Indexes {
		if usage, ok := tryEquality(idx.Columns, info.Constraints); ok {
			flags := vtab.IndexFlags(0)
			if idx.Unique {
				flags = vtab.IndexFlagUnique
			}
			return &vtab.BestIndexResult{
				IdxNum: idxSecondaryEquality, IdxStr: "idx:" + idx.Name,
				ConstraintUsage: usage, EstimatedCost: 2, EstimatedRows: 1,
				IdxFlags: flags,
			}, nil
		}
	}
	if len(pkCols) > 0 {
		if rp, ok := tryRange(pkCols[0], info.Constraints); ok {
			dir, consumed := matchOrder(pkCols, info.OrderBy)
			return &vtab.BestIndexResult{
				IdxNum: idxPKRange, IdxStr: "pk:" + rp.encode() + ":" + dir,
				ConstraintUsage: rp.usage, OrderByConsumed: consumed,
				EstimatedCost: 10, EstimatedRows: 100,
			}, nil
		}
	}
	for _, idx := range schema.Indexes {
		if len(idx.Columns) == 0 {
			continue
		}
		if rp, ok := tryRange(idx.Columns[0], info.Constraints); ok {
			dir, consumed := matchOrder(idx.Columns, info.OrderBy)
			return &vtab.BestIndexResult{
				IdxNum: idxSecondaryRange, IdxStr: "idx:" + idx.Name + ":" + rp.encode() + ":" + dir,
				ConstraintUsage: rp.usage, OrderByConsumed: consumed,
				EstimatedCost: 20, EstimatedRows: 100,
			}, nil
		}
	}

	dir, consumed := matchOrder(pkCols, info.OrderBy)
	idxStr := ""
	if dir == "desc" {
		idxStr = "desc"
	}
	return &vtab.BestIndexResult{
		IdxNum: idxFullScan, IdxStr: idxStr,
		ConstraintUsage: make([]vtab.ConstraintUsage, len(info.Constraints)),
		OrderByConsumed: consumed, EstimatedCost: 1000, EstimatedRows: 1000,
	}, nil
}

// tryEquality succeeds only when every column of cols has a usable Eq
// constraint; ArgvIndex is assigned in cols order, matching the order the
// emitter compacts ArgExprs into Filter's args (sql/program/relational.go
// openTableScan).
func tryEquality(cols []sql.IndexColumn, constraints []vtab.Constraint) ([]vtab.ConstraintUsage, bool) {
	usage := make([]vtab.ConstraintUsage, len(constraints))
	argv := 1
	for _, col := range cols {
		found := false
		for i, c := range constraints {
			if c.Usable && c.Op == vtab.OpEq && c.ColumnIndex == col.ColumnIndex && usage[i].ArgvIndex == 0 {
				usage[i] = vtab.ConstraintUsage{ArgvIndex: argv, Omit: true}
				argv++
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return usage, true
}

type rangePlan struct {
	lowerOp string // "", "gt", "gte"
	upperOp string // "", "lt", "lte"
	usage   []vtab.ConstraintUsage
}

func (r rangePlan) encode() string { return r.lowerOp + "," + r.upperOp }

func tryRange(col sql.IndexColumn, constraints []vtab.Constraint) (rangePlan, bool) {
	usage := make([]vtab.ConstraintUsage, len(constraints))
	rp := rangePlan{usage: usage}
	argv := 1
	for i, c := range constraints {
		if !c.Usable || c.ColumnIndex != col.ColumnIndex {
			continue
		}
		switch c.Op {
		case vtab.OpGt:
			if rp.lowerOp == "" {
				rp.lowerOp = "gt"
				usage[i] = vtab.ConstraintUsage{ArgvIndex: argv, Omit: true}
				argv++
			}
		case vtab.OpGte:
			if rp.lowerOp == "" {
				rp.lowerOp = "gte"
				usage[i] = vtab.ConstraintUsage{ArgvIndex: argv, Omit: true}
				argv++
			}
		case vtab.OpLt:
			if rp.upperOp == "" {
				rp.upperOp = "lt"
				usage[i] = vtab.ConstraintUsage{ArgvIndex: argv, Omit: true}
				argv++
			}
		case vtab.OpLte:
			if rp.upperOp == "" {
				rp.upperOp = "lte"
				usage[i] = vtab.ConstraintUsage{ArgvIndex: argv, Omit: true}
				argv++
			}
		}
	}
	if rp.lowerOp == "" && rp.upperOp == "" {
		return rangePlan{}, false
	}
	return rp, true
}

// matchOrder reports whether iterating cols's tree in ascending or
// descending key order satisfies orderBy outright, letting the emitter
// skip a separate Sort node (spec §4.1 xBestIndex round-trip).
func matchOrder(cols []sql.IndexColumn, orderBy []vtab.OrderByTerm) (dir string, consumed bool) {
	if len(orderBy) == 0 || len(orderBy) > len(cols) {
		return "asc", false
	}
	wantAsc := true
	for i, ob := range orderBy {
		if ob.ColumnIndex != cols[i].ColumnIndex {
			return "asc", false
		}
		// Ascending key-order traversal yields cols[i].Descending's sense
		// for that column; it satisfies this term iff the term wants the
		// same sense.
		treeAscWant := ob.Descending == cols[i].Descending
		if i == 0 {
			wantAsc = treeAscWant
		} else if treeAscWant != wantAsc {
			return "asc", false
		}
	}
	if wantAsc {
		return "asc", true
	}
	return "desc", true
}

const (
	idxFullScan = iota
	idxPKEquality
	idxPKRange
	idxSecondaryEquality
	idxSecondaryRange
)

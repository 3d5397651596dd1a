// Package program implements the plan-to-instruction emitter and the
// single-threaded cooperative scheduler that runs the result (spec.md
// §4.2, §4.3). Quereus's instructions are pull-based sql.RowIters rather
// than the spec's async-generator closures — the same "lazy, pull-driven,
// dependency-ordered" contract expressed with Go's synchronous iterator
// idiom instead of async/await, mirroring how the teacher's sql/rowexec
// package turns a sql.Node tree into row iterators with a type switch.
package program

import (
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/constraints"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/vtab"
)

// Emitter walks a sql.Node tree and opens it into an executing sql.RowIter,
// installing row-context frames as it descends (spec §4.2 "Walks the plan
// tree. Emits one instruction per node"). It holds no per-statement state
// of its own — everything the walk needs to memoize (ephemeral-table
// contents, open virtual-table connections) lives on the sql.Context each
// Open call is given, so one Emitter is safe to reuse, and to share, across
// concurrently executing statements as long as each has its own Context.
type Emitter struct {
	Constraints *constraints.Engine
}

func NewEmitter() *Emitter {
	return &Emitter{Constraints: constraints.NewEngine()}
}

// Run implements sql.SubqueryRunner, letting EXISTS/IN (subquery)/scalar
// subquery expressions (package sql/expression) re-enter the emitter
// without that package importing this one (spec §4.2's callable boundary).
func (e *Emitter) Run(ctx *sql.Context, node sql.Node) (sql.RowIter, error) {
	return e.Open(ctx, node)
}

// Open dispatches node to its relational handler. Two kinds of node get
// genuine memoization across repeated Open calls within one statement
// execution — Materialize and RecursiveCTE, whose rows are cached in
// ctx.Materialized under the node's own Identity() so every EphemeralScan
// referencing them reads the already-computed rows instead of re-running
// the subtree (spec §4.2 "references share it", restricted here to the
// plan shapes that actually get referenced more than once: CTEs). Every
// other node type is re-opened fresh each call, which is the correct,
// streaming behavior for everything that isn't shared.
func (e *Emitter) Open(ctx *sql.Context, node sql.Node) (sql.RowIter, error) {
	switch n := node.(type) {
	case *plan.TableScan:
		return e.openTableScan(ctx, n)
	case *plan.TableFunctionCall:
		return e.openTableFunctionCall(ctx, n)
	case *plan.Values:
		return e.openValues(ctx, n)
	case *plan.Filter:
		return e.openFilter(ctx, n)
	case *plan.Project:
		return e.openProject(ctx, n)
	case *plan.Join:
		return e.openJoin(ctx, n)
	case *plan.Sort:
		return e.openSort(ctx, n)
	case *plan.LimitOffset:
		return e.openLimitOffset(ctx, n)
	case *plan.Aggregate:
		return e.openAggregate(ctx, n)
	case *plan.Materialize:
		return e.openMaterialize(ctx, n)
	case *plan.EphemeralScan:
		return e.openEphemeralScan(ctx, n)
	case *plan.SelfReference:
		return e.openSelfReference(ctx, n)
	case *plan.RecursiveCTE:
		return e.openRecursiveCTE(ctx, n)
	case *plan.Insert:
		return e.openInsert(ctx, n)
	case *plan.Update:
		return e.openUpdate(ctx, n)
	case *plan.Delete:
		return e.openDelete(ctx, n)
	case *plan.ConstraintCheck:
		return e.openConstraintCheck(ctx, n)
	default:
		return nil, sql.ErrInternal.New("no emitter registered for plan node " + node.String())
	}
}

// connectionFor returns the current statement's connection to table,
// opening and caching one on ctx.Connections if this is the first use
// (spec §4.5 "Connection state" — one connection per consumer session per
// table).
func connectionFor(ctx *sql.Context, qualifiedName string, table vtab.Table) (vtab.Connection, error) {
	if existing, ok := ctx.Connections[qualifiedName]; ok {
		conn, ok := existing.(vtab.Connection)
		if !ok {
			return nil, sql.ErrInternal.New("connection for " + qualifiedName + " is not a vtab.Connection")
		}
		return conn, nil
	}
	conn, err := table.OpenConnection(ctx)
	if err != nil {
		return nil, err
	}
	ctx.Connections[qualifiedName] = conn
	return conn, nil
}

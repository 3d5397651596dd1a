package program

import (
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/plan"
)

// openMaterialize drains Input once and caches the result under this
// node's own Identity, so an EphemeralScan referencing it (by wrapping the
// same *Materialize pointer as its Input) reads the cached rows instead of
// re-running the subtree (spec §4.1 "CTEs (WITH)" materialized strategy).
func (e *Emitter) openMaterialize(ctx *sql.Context, n *plan.Materialize) (sql.RowIter, error) {
	if rows, ok := ctx.Materialized[n.Identity()]; ok {
		return sql.NewSliceIter(rows), nil
	}
	input, err := e.Open(ctx, n.Input)
	if err != nil {
		return nil, err
	}
	rows, err := sql.RowIterToRows(ctx, input)
	if err != nil {
		return nil, err
	}
	ctx.Materialized[n.Identity()] = rows
	return sql.NewSliceIter(rows), nil
}

// openEphemeralScan ensures its producing node (a Materialize or
// RecursiveCTE) has run — opening it if ctx.Materialized doesn't yet carry
// its rows — then returns a fresh cursor over the cached rows, independent
// of any other reference site's scan position.
func (e *Emitter) openEphemeralScan(ctx *sql.Context, n *plan.EphemeralScan) (sql.RowIter, error) {
	id := n.Input.Identity()
	rows, ok := ctx.Materialized[id]
	if !ok {
		producer, err := e.Open(ctx, n.Input)
		if err != nil {
			return nil, err
		}
		rows, err = sql.RowIterToRows(ctx, producer)
		if err != nil {
			return nil, err
		}
		ctx.Materialized[id] = rows
	}
	return sql.NewSliceIter(rows), nil
}

// openSelfReference yields exactly the row currently bound to Cell (the
// row the enclosing RecursiveCTE executor most recently popped from its
// queue), never a live scan of the queue table (spec §4.1 "Recursive
// CTEs").
func (e *Emitter) openSelfReference(ctx *sql.Context, n *plan.SelfReference) (sql.RowIter, error) {
	if n.Cell.Row == nil {
		return sql.EmptyIter, nil
	}
	return sql.NewSliceIter([]sql.Row{n.Cell.Row}), nil
}

// openRecursiveCTE drives the fixed-point loop of spec §4.1 "Recursive
// CTEs": run Initial once into the result and queue lists, then repeatedly
// pop one row from the queue, rebind SelfRef to it, evaluate RecursiveTerm,
// and fold any new rows into both lists (subject to Distinct dedup), until
// the queue is empty. A non-recursive UNION/UNION ALL is represented as a
// RecursiveCTE with an empty Name: its RecursiveTerm runs exactly once after
// Initial, through the same Distinct dedup, and the queue loop is skipped.
func (e *Emitter) openRecursiveCTE(ctx *sql.Context, n *plan.RecursiveCTE) (sql.RowIter, error) {
	if rows, ok := ctx.Materialized[n.Identity()]; ok {
		return sql.NewSliceIter(rows), nil
	}

	initial, err := e.Open(ctx, n.Initial)
	if err != nil {
		return nil, err
	}
	initRows, err := sql.RowIterToRows(ctx, initial)
	if err != nil {
		return nil, err
	}

	var result []sql.Row
	var queue []sql.Row
	seen := map[string]bool{}

	add := func(row sql.Row) {
		if n.Distinct {
			k := keyString([]sql.Value(row))
			if seen[k] {
				return
			}
			seen[k] = true
		}
		result = append(result, row)
		queue = append(queue, row)
	}
	for _, row := range initRows {
		add(row)
	}
	if n.Name == "" {
		termIter, err := e.Open(ctx, n.RecursiveTerm)
		if err != nil {
			return nil, err
		}
		termRows, err := sql.RowIterToRows(ctx, termIter)
		if err != nil {
			return nil, err
		}
		for _, row := range termRows {
			add(row)
		}
		queue = nil
	}

	for len(queue) > 0 {
		row := queue[0]
		queue = queue[1:]
		n.SelfRef.Cell.Row = row

		termIter, err := e.Open(ctx, n.RecursiveTerm)
		if err != nil {
			return nil, err
		}
		newRows, err := sql.RowIterToRows(ctx, termIter)
		if err != nil {
			return nil, err
		}
		for _, nr := range newRows {
			add(nr)
		}
	}
	n.SelfRef.Cell.Row = nil

	ctx.Materialized[n.Identity()] = result
	return sql.NewSliceIter(result), nil
}

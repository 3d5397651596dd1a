package program

import (
	"io"
	"sort"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/plan"
)

// cursorIter adapts a vtab.Cursor to a sql.RowIter.
type cursorIter struct {
	cur interface {
		Next(ctx *sql.Context) (sql.Row, error)
		Close(ctx *sql.Context) error
	}
}

func (c *cursorIter) Next(ctx *sql.Context) (sql.Row, error) { return c.cur.Next(ctx) }
func (c *cursorIter) Close(ctx *sql.Context) error           { return c.cur.Close(ctx) }

func (e *Emitter) openTableScan(ctx *sql.Context, n *plan.TableScan) (sql.RowIter, error) {
	conn, err := connectionFor(ctx, n.TableName, n.Table)
	if err != nil {
		return nil, err
	}
	cur, err := conn.OpenCursor(ctx)
	if err != nil {
		return nil, err
	}
	args := make([]sql.Value, 0, len(n.ArgExprs))
	for _, argExpr := range n.ArgExprs {
		if argExpr == nil {
			continue
		}
		v, err := argExpr.Eval(ctx)
		if err != nil {
			cur.Close(ctx)
			return nil, err
		}
		args = append(args, v)
	}
	if err := cur.Filter(ctx, n.Plan.IdxNum, n.Plan.IdxStr, args); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	return &cursorIter{cur: cur}, nil
}

func (e *Emitter) openTableFunctionCall(ctx *sql.Context, n *plan.TableFunctionCall) (sql.RowIter, error) {
	args := make([]sql.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := a.Eval(ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return n.Run(ctx, args)
}

func (e *Emitter) openValues(ctx *sql.Context, n *plan.Values) (sql.RowIter, error) {
	rows := make([]sql.Row, len(n.Rows))
	for i, exprs := range n.Rows {
		row := make(sql.Row, len(exprs))
		for j, expr := range exprs {
			v, err := expr.Eval(ctx)
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
		rows[i] = row
	}
	return sql.NewSliceIter(rows), nil
}

// filterIter evaluates Predicate per input row under a pushed frame
// describing that row, yielding only rows where it is truthy (spec §4.1
// "SELECT building" step 2, §4.3 "scope frame").
type filterIter struct {
	input sql.RowIter
	slot  *sql.Slot
	pred  sql.Expression
}

func (f *filterIter) Next(ctx *sql.Context) (sql.Row, error) {
	for {
		row, err := f.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		f.slot.Set(row)
		v, err := f.pred.Eval(ctx)
		if err != nil {
			return nil, err
		}
		if v.Truthy() {
			return row, nil
		}
	}
}

func (f *filterIter) Close(ctx *sql.Context) error {
	f.slot.Close()
	return f.input.Close(ctx)
}

func (e *Emitter) openFilter(ctx *sql.Context, n *plan.Filter) (sql.RowIter, error) {
	input, err := e.Open(ctx, n.Input)
	if err != nil {
		return nil, err
	}
	slot := sql.NewSlot(ctx.Rows, n.Descriptor)
	return &filterIter{input: input, slot: slot, pred: n.Predicate}, nil
}

// projectIter evaluates Projections per input row under a pushed frame
// describing that row, producing the output row (spec §4.1 step 4).
type projectIter struct {
	input sql.RowIter
	slot  *sql.Slot
	projs []plan.Projection
}

func (p *projectIter) Next(ctx *sql.Context) (sql.Row, error) {
	row, err := p.input.Next(ctx)
	if err != nil {
		return nil, err
	}
	p.slot.Set(row)
	out := make(sql.Row, len(p.projs))
	for i, proj := range p.projs {
		v, err := proj.Expr.Eval(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *projectIter) Close(ctx *sql.Context) error {
	p.slot.Close()
	return p.input.Close(ctx)
}

func (e *Emitter) openProject(ctx *sql.Context, n *plan.Project) (sql.RowIter, error) {
	input, err := e.Open(ctx, n.Input)
	if err != nil {
		return nil, err
	}
	slot := sql.NewSlot(ctx.Rows, n.Descriptor)
	return &projectIter{input: input, slot: slot, projs: n.Projections}, nil
}

// openJoin implements Join by nested-loop evaluation (spec's REDESIGN FLAG:
// inner/left only, no hash/merge strategy). The right side is re-opened
// fresh for every left row, since a vtab.Cursor is not assumed rewindable.
func (e *Emitter) openJoin(ctx *sql.Context, n *plan.Join) (sql.RowIter, error) {
	left, err := e.Open(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	rightWidth := len(n.Right.RelType().Columns)
	slot := sql.NewSlot(ctx.Rows, n.Descriptor)
	return &joinIter{e: e, n: n, left: left, slot: slot, rightWidth: rightWidth}, nil
}

type joinIter struct {
	e          *Emitter
	n          *plan.Join
	left       sql.RowIter
	right      sql.RowIter
	slot       *sql.Slot
	leftRow    sql.Row
	matched    bool
	rightWidth int
}

func (j *joinIter) Next(ctx *sql.Context) (sql.Row, error) {
	for {
		if j.right == nil {
			row, err := j.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			j.leftRow = row
			j.matched = false
			right, err := j.e.Open(ctx, j.n.Right)
			if err != nil {
				return nil, err
			}
			j.right = right
		}
		rightRow, err := j.right.Next(ctx)
		if err == io.EOF {
			j.right.Close(ctx)
			j.right = nil
			if !j.matched && j.n.Kind == plan.JoinLeft {
				combined := concatNulls(j.leftRow, j.rightWidth)
				return combined, nil
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		combined := append(append(sql.Row{}, j.leftRow...), rightRow...)
		j.slot.Set(combined)
		v, err := j.n.On.Eval(ctx)
		if err != nil {
			return nil, err
		}
		if v.Truthy() {
			j.matched = true
			return combined, nil
		}
	}
}

func concatNulls(left sql.Row, rightWidth int) sql.Row {
	out := append(sql.Row{}, left...)
	for i := 0; i < rightWidth; i++ {
		out = append(out, sql.Null)
	}
	return out
}

func (j *joinIter) Close(ctx *sql.Context) error {
	j.slot.Close()
	if j.right != nil {
		j.right.Close(ctx)
	}
	return j.left.Close(ctx)
}

// openSort drains Input, orders it by Terms under a pushed frame, and
// returns a slice iterator over the result (spec §4.1 step 5).
func (e *Emitter) openSort(ctx *sql.Context, n *plan.Sort) (sql.RowIter, error) {
	input, err := e.Open(ctx, n.Input)
	if err != nil {
		return nil, err
	}
	defer input.Close(ctx)
	rows, err := sql.RowIterToRows(ctx, input)
	if err != nil {
		return nil, err
	}
	slot := sql.NewSlot(ctx.Rows, n.Descriptor)
	defer slot.Close()
	keys := make([][]sql.Value, len(rows))
	for i, row := range rows {
		slot.Set(row)
		key := make([]sql.Value, len(n.Terms))
		for j, t := range n.Terms {
			v, err := t.Expr.Eval(ctx)
			if err != nil {
				return nil, err
			}
			key[j] = v
		}
		keys[i] = key
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for t, term := range n.Terms {
			c := sql.Compare(ka[t], kb[t])
			if term.Descending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	out := make([]sql.Row, len(rows))
	for i, k := range idx {
		out[i] = rows[k]
	}
	return sql.NewSliceIter(out), nil
}

// openLimitOffset evaluates Limit/Offset once (they may reference bound
// parameters but never the row stream itself) and wraps Input accordingly.
func (e *Emitter) openLimitOffset(ctx *sql.Context, n *plan.LimitOffset) (sql.RowIter, error) {
	input, err := e.Open(ctx, n.Input)
	if err != nil {
		return nil, err
	}
	var offset, limit int64 = 0, -1
	if n.Offset != nil {
		v, err := n.Offset.Eval(ctx)
		if err != nil {
			input.Close(ctx)
			return nil, err
		}
		offset = v.Int
	}
	if n.Limit != nil {
		v, err := n.Limit.Eval(ctx)
		if err != nil {
			input.Close(ctx)
			return nil, err
		}
		limit = v.Int
	}
	return &limitIter{input: input, remainingOffset: offset, remainingLimit: limit}, nil
}

type limitIter struct {
	input           sql.RowIter
	remainingOffset int64
	remainingLimit  int64 // -1 = unbounded
}

func (l *limitIter) Next(ctx *sql.Context) (sql.Row, error) {
	for l.remainingOffset > 0 {
		if _, err := l.input.Next(ctx); err != nil {
			return nil, err
		}
		l.remainingOffset--
	}
	if l.remainingLimit == 0 {
		return nil, io.EOF
	}
	row, err := l.input.Next(ctx)
	if err != nil {
		return nil, err
	}
	if l.remainingLimit > 0 {
		l.remainingLimit--
	}
	return row, nil
}

func (l *limitIter) Close(ctx *sql.Context) error { return l.input.Close(ctx) }

// openAggregate drains Input, groups by GroupBy (preserving first-arrival
// group order, spec §5 "Ordering guarantees"), and evaluates each group's
// Aggregates, returning one materialized row per group.
func (e *Emitter) openAggregate(ctx *sql.Context, n *plan.Aggregate) (sql.RowIter, error) {
	input, err := e.Open(ctx, n.Input)
	if err != nil {
		return nil, err
	}
	defer input.Close(ctx)
	slot := sql.NewSlot(ctx.Rows, n.Descriptor)
	defer slot.Close()

	type group struct {
		key  []sql.Value
		accs []sql.Accumulator
	}
	var order []string
	groups := make(map[string]*group)

	for {
		row, err := input.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		slot.Set(row)
		key := make([]sql.Value, len(n.GroupBy))
		for i, g := range n.GroupBy {
			v, err := g.Eval(ctx)
			if err != nil {
				return nil, err
			}
			key[i] = v
		}
		keyStr := keyString(key)
		g, ok := groups[keyStr]
		if !ok {
			g = &group{key: key, accs: make([]sql.Accumulator, len(n.Aggregates))}
			for i, agg := range n.Aggregates {
				g.accs[i] = agg.Fn.NewAccumulator()
			}
			groups[keyStr] = g
			order = append(order, keyStr)
		}
		for i, agg := range n.Aggregates {
			args := make([]sql.Value, len(agg.Args))
			for j, a := range agg.Args {
				v, err := a.Eval(ctx)
				if err != nil {
					return nil, err
				}
				args[j] = v
			}
			if err := g.accs[i].Update(args); err != nil {
				return nil, err
			}
		}
	}

	out := make([]sql.Row, 0, len(order))
	for _, k := range order {
		g := groups[k]
		row := make(sql.Row, 0, len(g.key)+len(g.accs))
		row = append(row, g.key...)
		for _, acc := range g.accs {
			v, err := acc.Eval()
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		out = append(out, row)
	}
	if len(order) == 0 && len(n.GroupBy) == 0 {
		// A GROUP BY-less aggregate over zero input rows still yields one
		// row (every accumulator's zero value), matching ordinary SQL
		// aggregate semantics.
		row := make(sql.Row, len(n.Aggregates))
		for i, agg := range n.Aggregates {
			v, err := agg.Fn.NewAccumulator().Eval()
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		out = append(out, row)
	}
	return sql.NewSliceIter(out), nil
}

func keyString(vals []sql.Value) string {
	out := make([]byte, 0, 16*len(vals))
	for _, v := range vals {
		out = append(out, byte(v.Kind))
		out = append(out, v.String()...)
		out = append(out, 0)
	}
	return string(out)
}

package planbuilder

import (
	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/sql/scope"
	"github.com/Digithought/quereus-sub010/vtab"
)

// relBuild threads a node together with the attribute IDs its output row
// carries (parallel to Node.RelType().Columns, in order) and the scope
// those attributes are resolvable through. Every build* helper in this
// package passes relBuilds around instead of bare sql.Node so descriptors
// can be constructed mechanically wherever a node needs one.
type relBuild struct {
	Node  sql.Node
	Attrs []sql.AttributeID
	Scope scope.Scope
}

func descriptorOf(attrs []sql.AttributeID) sql.RowDescriptor {
	d := make(sql.RowDescriptor, len(attrs))
	for i, a := range attrs {
		d[a] = i
	}
	return d
}

// buildSelectStatement implements spec §4.1 "SELECT building" end to end,
// including an optional leading WITH clause.
func (b *Builder) buildSelectStatement(s *ast.SelectStatement, outer scope.Scope) (*Plan, error) {
	sc := outer
	if s.With != nil {
		env, err := b.buildWith(s.With, outer)
		if err != nil {
			return nil, err
		}
		sc = &cteAwareScope{Scope: outer, env: env}
	}
	rb, cols, err := b.buildSelectCore(s, sc)
	if err != nil {
		return nil, err
	}
	return &Plan{Node: rb.Node, ColumnNames: cols}, nil
}

// cteEnv records, per WITH entry, the compiled relBuild so FROM clauses in
// the main query (or later CTEs) can reference it by name (spec §4.1 "CTEs
// (WITH)").
type cteEnv struct {
	builds map[string]relBuild
}

// cteAwareScope carries the env alongside the ordinary scope chain;
// buildTableSource checks it before falling back to the catalog.
type cteAwareScope struct {
	scope.Scope
	env *cteEnv
}

func (b *Builder) buildWith(w *ast.WithClause, outer scope.Scope) (*cteEnv, error) {
	env := &cteEnv{builds: map[string]relBuild{}}
	chain := outer
	for _, cte := range w.CTEs {
		rb, cols, err := b.buildCTEBody(cte, chain, env)
		if err != nil {
			return nil, err
		}
		colNames := cte.ColumnNames
		if len(colNames) == 0 {
			colNames = cols
		}
		named := renameAttrs(b, rb, cte.Name, colNames)
		env.builds[cte.Name] = named
		chain = scope.NewMultiScope(chain, named.Scope)
	}
	return env, nil
}

// renameAttrs wraps rb in a passthrough Project that re-exposes its
// columns under a fresh set of attribute IDs named for a CTE/subquery
// alias, so later references resolve independently of the body's own
// internal attribute numbering.
func renameAttrs(b *Builder, rb relBuild, table string, names []string) relBuild {
	cols := rb.Node.RelType().Columns
	attrs := make([]sql.AttributeID, len(cols))
	bindings := make([]scope.Binding, len(cols))
	projs := make([]plan.Projection, len(cols))
	for i, c := range cols {
		attrs[i] = b.Attrs.Next()
		name := c.Name
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		bindings[i] = scope.Binding{Attribute: attrs[i], Type: scalarTypeOf(c), Table: table, Column: name}
		projs[i] = plan.Projection{Expr: expression.NewPositionalRef(i, scalarTypeOf(c)), Attribute: attrs[i], Alias: name}
	}
	node := plan.NewProject(rb.Node, projs, descriptorOf(rb.Attrs))
	return relBuild{Node: node, Attrs: attrs, Scope: scope.NewRegisteredScope(table, bindings)}
}

func (b *Builder) buildCTEBody(cte ast.CommonTableExpr, outer scope.Scope, env *cteEnv) (relBuild, []string, error) {
	if !cte.Recursive {
		rb, cols, err := b.buildQueryBody(cte.Query, outer)
		if err != nil {
			return relBuild{}, nil, err
		}
		if cte.Materialization == ast.CTEMaterialized {
			mat := plan.NewMaterialize(cte.Name, rb.Node, rb.Attrs)
			scan := plan.NewEphemeralScan(cte.Name, mat, rb.Attrs, rb.Node.RelType())
			return relBuild{Node: scan, Attrs: rb.Attrs, Scope: rb.Scope}, cols, nil
		}
		return rb, cols, nil
	}
	return b.buildRecursiveCTE(cte, outer)
}

// buildRecursiveCTE implements spec §4.1 "Recursive CTEs": the body must be
// a UNION/UNION ALL whose left side is the initial term and whose right
// side (referencing the CTE's own name) is the recursive term.
func (b *Builder) buildRecursiveCTE(cte ast.CommonTableExpr, outer scope.Scope) (relBuild, []string, error) {
	setOp, ok := cte.Query.(*ast.SetOperation)
	if !ok {
		return relBuild{}, nil, sql.ErrParse.New("recursive CTE body must be a UNION/UNION ALL")
	}
	initial, cols, err := b.buildQueryBody(setOp.Left, outer)
	if err != nil {
		return relBuild{}, nil, err
	}

	relType := initial.Node.RelType()
	bindings := make([]scope.Binding, len(relType.Columns))
	for i, c := range relType.Columns {
		name := c.Name
		if i < len(cte.ColumnNames) && cte.ColumnNames[i] != "" {
			name = cte.ColumnNames[i]
		}
		bindings[i] = scope.Binding{Attribute: initial.Attrs[i], Type: scalarTypeOf(c), Table: cte.Name, Column: name}
	}
	cell := &plan.RowCell{}
	selfRef := plan.NewSelfReference(initial.Attrs, cell, relType)
	selfScope := scope.NewRegisteredScope(cte.Name, bindings)

	recursiveOuter := scope.NewMultiScope(outer, selfScope)
	recursiveTerm, _, err := b.buildQueryBody(setOp.Right, recursiveOuter)
	if err != nil {
		return relBuild{}, nil, err
	}

	distinct := setOp.Op == ast.SetOpUnion
	rec := plan.NewRecursiveCTE(cte.Name, initial.Node, recursiveTerm.Node, selfRef, initial.Attrs, distinct)
	return relBuild{Node: rec, Attrs: initial.Attrs, Scope: selfScope}, cols, nil
}

// buildQueryBody builds any statement usable as a query source: a plain
// SELECT or a set operation (UNION/UNION ALL).
func (b *Builder) buildQueryBody(stmt ast.Statement, outer scope.Scope) (relBuild, []string, error) {
	switch s := stmt.(type) {
	case *ast.SelectStatement:
		return b.buildSelectCore(s, outer)
	case *ast.SetOperation:
		return b.buildSetOperation(s, outer)
	default:
		return relBuild{}, nil, sql.ErrUnsupported.New("query body type")
	}
}

// buildSetOperation compiles a plain UNION/UNION ALL as a RecursiveCTE run
// for exactly one recursive step (the right-hand term evaluated once,
// without consulting its own output), reusing the same dedup machinery
// UNION's distinctness needs (spec's recursive-CTE queue/result tables).
func (b *Builder) buildSetOperation(s *ast.SetOperation, outer scope.Scope) (relBuild, []string, error) {
	left, cols, err := b.buildQueryBody(s.Left, outer)
	if err != nil {
		return relBuild{}, nil, err
	}
	right, _, err := b.buildQueryBody(s.Right, outer)
	if err != nil {
		return relBuild{}, nil, err
	}
	cell := &plan.RowCell{}
	selfRef := plan.NewSelfReference(left.Attrs, cell, left.Node.RelType())
	rec := plan.NewRecursiveCTE("", left.Node, right.Node, selfRef, left.Attrs, s.Op == ast.SetOpUnion)
	return relBuild{Node: rec, Attrs: left.Attrs, Scope: left.Scope}, cols, nil
}

// buildSelectCore implements the per-SELECT sequence of spec §4.1 steps
// (1)-(6), independent of any enclosing WITH clause.
func (b *Builder) buildSelectCore(s *ast.SelectStatement, outer scope.Scope) (relBuild, []string, error) {
	prevSubst := b.aggSubst
	b.aggSubst = nil
	defer func() { b.aggSubst = prevSubst }()

	var cur relBuild
	if len(s.From) == 0 {
		attr := b.Attrs.Next()
		typ := sql.RelationalType{Columns: []sql.Column{{Name: "dummy", Affinity: sql.AffinityInteger}}}
		cur = relBuild{
			Node:  plan.NewTableFunctionCall("dual", nil, []sql.AttributeID{attr}, typ, dualRun),
			Attrs: []sql.AttributeID{attr},
			Scope: scope.NewRegisteredScope("", []scope.Binding{{Attribute: attr, Column: "dummy", Type: sql.ScalarType{Affinity: sql.AffinityInteger}}}),
		}
	} else {
		var err error
		cur, err = b.buildFromClause(s.From, outer)
		if err != nil {
			return relBuild{}, nil, err
		}
	}

	combinedScope := scope.NewMultiScope(cur.Scope, outer)

	if s.Where != nil {
		pred, err := b.buildExpr(s.Where, combinedScope)
		if err != nil {
			return relBuild{}, nil, err
		}
		cur.Node = plan.NewFilter(cur.Node, pred, descriptorOf(cur.Attrs))
	}

	hasAggregate := false
	for _, c := range s.Columns {
		if !c.Star && containsAggregate(c.Expr, b) {
			hasAggregate = true
			break
		}
	}
	if hasAggregate || len(s.GroupBy) > 0 {
		var err error
		cur, err = b.buildAggregate(cur, s, combinedScope)
		if err != nil {
			return relBuild{}, nil, err
		}
		combinedScope = cur.Scope
		if s.Having != nil {
			pred, err := b.buildExpr(s.Having, combinedScope)
			if err != nil {
				return relBuild{}, nil, err
			}
			cur.Node = plan.NewFilter(cur.Node, pred, descriptorOf(cur.Attrs))
		}
	} else {
		for _, c := range s.Columns {
			if !c.Star && containsAggregate(c.Expr, b) {
				return relBuild{}, nil, sql.ErrMixedAggregate.New()
			}
		}
	}

	projected, colNames, err := b.buildProjection(cur, s.Columns, combinedScope)
	if err != nil {
		return relBuild{}, nil, err
	}
	cur = projected
	if s.Distinct {
		cur = b.applyDistinct(cur)
	}

	if len(s.OrderBy) > 0 {
		terms := make([]plan.SortTerm, 0, len(s.OrderBy))
		for _, o := range s.OrderBy {
			e, err := b.buildExpr(o.Expr, cur.Scope)
			if err != nil {
				return relBuild{}, nil, err
			}
			terms = append(terms, plan.SortTerm{Expr: e, Descending: o.Descending})
		}
		cur.Node = plan.NewSort(cur.Node, terms, descriptorOf(cur.Attrs))
	}

	if s.Limit != nil || s.Offset != nil {
		var limit, offset sql.Expression
		if s.Limit != nil {
			limit, err = b.buildExpr(s.Limit, cur.Scope)
			if err != nil {
				return relBuild{}, nil, err
			}
		}
		if s.Offset != nil {
			offset, err = b.buildExpr(s.Offset, cur.Scope)
			if err != nil {
				return relBuild{}, nil, err
			}
		}
		cur.Node = plan.NewLimitOffset(cur.Node, limit, offset)
	}

	return cur, colNames, nil
}

func dualRun(ctx *sql.Context, args []sql.Value) (sql.RowIter, error) {
	return sql.NewSliceIter([]sql.Row{{sql.IntValue(0)}}), nil
}

func containsAggregate(e ast.Expr, b *Builder) bool {
	found := false
	walkExpr(e, func(child ast.Expr) {
		if fc, ok := child.(*ast.FunctionCall); ok {
			if fn, ok2 := b.Catalog.Functions().Lookup(fc.Name); ok2 {
				if _, isAgg := fn.(sql.AggregateFunction); isAgg {
					found = true
				}
			}
		}
	})
	return found
}

func walkExpr(e ast.Expr, visit func(ast.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch x := e.(type) {
	case *ast.BinaryExpr:
		walkExpr(x.Left, visit)
		walkExpr(x.Right, visit)
	case *ast.UnaryExpr:
		walkExpr(x.Operand, visit)
	case *ast.FunctionCall:
		for _, a := range x.Args {
			walkExpr(a, visit)
		}
	case *ast.CaseExpr:
		walkExpr(x.Operand, visit)
		for _, w := range x.Whens {
			walkExpr(w.When, visit)
			walkExpr(w.Then, visit)
		}
		walkExpr(x.Else, visit)
	case *ast.CastExpr:
		walkExpr(x.Operand, visit)
	}
}

// buildFromClause folds every FROM source (and any join chain) into one
// node plus a scope exposing every source's columns (spec §4.1 step 1).
// Consecutive sources with no explicit JoinSource are combined as an
// implicit inner join on TRUE (a cross join), matching comma-separated
// FROM-list semantics.
func (b *Builder) buildFromClause(sources []ast.FromSource, outer scope.Scope) (relBuild, error) {
	var cur relBuild
	for i, src := range sources {
		if src.Join != nil {
			left, err := b.buildSingleSource(*src.Join.Left, outer)
			if err != nil {
				return relBuild{}, err
			}
			right, err := b.buildSingleSource(src, outer)
			if err != nil {
				return relBuild{}, err
			}
			combined := scope.NewMultiScope(left.Scope, right.Scope)
			onExpr, err := b.buildExpr(src.Join.On, combined)
			if err != nil {
				return relBuild{}, err
			}
			kind := plan.JoinInner
			if src.Join.Kind == ast.JoinLeft {
				kind = plan.JoinLeft
			}
			attrs := append(append([]sql.AttributeID{}, left.Attrs...), right.Attrs...)
			node := plan.NewJoin(left.Node, right.Node, kind, onExpr, descriptorOf(attrs))
			cur = relBuild{Node: node, Attrs: attrs, Scope: combined}
			continue
		}
		rb, err := b.buildSingleSource(src, outer)
		if err != nil {
			return relBuild{}, err
		}
		if i == 0 {
			cur = rb
			continue
		}
		attrs := append(append([]sql.AttributeID{}, cur.Attrs...), rb.Attrs...)
		node := plan.NewJoin(cur.Node, rb.Node, plan.JoinInner, trueLiteral(), descriptorOf(attrs))
		cur = relBuild{Node: node, Attrs: attrs, Scope: scope.NewMultiScope(cur.Scope, rb.Scope)}
	}
	return cur, nil
}

func trueLiteral() sql.Expression {
	return expression.NewLiteral(sql.IntValue(1), sql.ScalarType{Affinity: sql.AffinityInteger})
}

func (b *Builder) buildSingleSource(src ast.FromSource, outer scope.Scope) (relBuild, error) {
	switch {
	case src.Subquery != nil:
		rb, cols, err := b.buildQueryBody(src.Subquery, outer)
		if err != nil {
			return relBuild{}, err
		}
		return renameAttrs(b, rb, src.Alias, cols), nil

	case src.TableFunc != nil:
		return b.buildTableFunctionSource(src)

	default:
		if cteScope, ok := lookupCTE(outer, src.Table); ok {
			alias := src.Alias
			if alias == "" {
				alias = src.Table
			}
			return renameAttrs(b, cteScope, alias, nil), nil
		}
		return b.buildTableSource(src)
	}
}

// lookupCTE walks a scope chain looking for a cteAwareScope carrying name.
func lookupCTE(sc scope.Scope, name string) (relBuild, bool) {
	switch s := sc.(type) {
	case *cteAwareScope:
		if rb, ok := s.env.builds[name]; ok {
			return rb, true
		}
		return lookupCTE(s.Scope, name)
	case *scope.MultiScope:
		for _, c := range s.Children {
			if rb, ok := lookupCTE(c, name); ok {
				return rb, true
			}
		}
	}
	return relBuild{}, false
}

func (b *Builder) buildTableSource(src ast.FromSource) (relBuild, error) {
	schema, table, ok := b.Catalog.Table("", src.Table)
	if !ok {
		return relBuild{}, sql.ErrUnknownTable.New(src.Table)
	}
	alias := src.Alias
	if alias == "" {
		alias = src.Table
	}
	attrs := make([]sql.AttributeID, len(schema.Columns))
	bindings := make([]scope.Binding, len(schema.Columns))
	for i, c := range schema.Columns {
		attrs[i] = b.Attrs.Next()
		bindings[i] = scope.Binding{Attribute: attrs[i], Type: scalarTypeOf(c), Table: alias, Column: c.Name}
	}
	info := &vtab.IndexInfo{}
	result, ierr := fullScanBestIndex(table, schema, info)
	if ierr != nil {
		return relBuild{}, ierr
	}
	node := plan.NewTableScan(src.Table, alias, table, schema, attrs, result, nil)
	return relBuild{Node: node, Attrs: attrs, Scope: scope.NewRegisteredScope(alias, bindings)}, nil
}

// fullScanBestIndex supplies every TableScan's access path: a full scan
// (IdxNum 0, no constraint usage, OrderByConsumed false) with a
// column-count cost heuristic. No module's BestIndex is called, so no
// WHERE predicate is pushed into a scan and no ORDER BY is consumed by one.
func fullScanBestIndex(table vtab.Table, schema *sql.TableSchema, info *vtab.IndexInfo) (*vtab.BestIndexResult, error) {
	return &vtab.BestIndexResult{EstimatedCost: float64(len(schema.Columns)) * 10, EstimatedRows: 1000}, nil
}

func (b *Builder) buildTableFunctionSource(src ast.FromSource) (relBuild, error) {
	return relBuild{}, sql.ErrUnsupported.New("table-valued function " + src.TableFunc.Name + " must be resolved via package explain")
}

package planbuilder

import (
	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/sql/scope"
	"github.com/Digithought/quereus-sub010/vtab"
)

func conflictPolicyOf(p ast.ConflictPolicy) vtab.ConflictPolicy { return vtab.ConflictPolicy(p) }

// buildInsert implements spec §4.1's INSERT building: VALUES rows or an
// INSERT ... SELECT source, reordered/defaulted into the table's full
// column order, written via plan.Insert.
func (b *Builder) buildInsert(s *ast.InsertStatement, outer scope.Scope) (*Plan, error) {
	sc := outer
	if s.With != nil {
		env, err := b.buildWith(s.With, outer)
		if err != nil {
			return nil, err
		}
		sc = &cteAwareScope{Scope: outer, env: env}
	}

	schema, table, ok := b.Catalog.Table("", s.Table)
	if !ok {
		return nil, sql.ErrUnknownTable.New(s.Table)
	}
	if schema.IsReadOnly {
		return nil, sql.ErrTableIsReadOnly.New(s.Table)
	}

	targetCols := s.Columns
	if len(targetCols) == 0 {
		targetCols = make([]string, len(schema.Columns))
		for i, c := range schema.Columns {
			targetCols[i] = c.Name
		}
	}

	var source relBuild
	var err error
	if s.Query != nil {
		source, _, err = b.buildQueryBody(s.Query, sc)
		if err != nil {
			return nil, err
		}
	} else {
		attrs := make([]sql.AttributeID, len(targetCols))
		cols := make([]sql.Column, len(targetCols))
		for i, name := range targetCols {
			idx := schema.ColumnIndex(name)
			if idx < 0 {
				return nil, sql.ErrUnknownColumn.New(name)
			}
			attrs[i] = b.Attrs.Next()
			cols[i] = schema.Columns[idx]
		}
		rows := make([][]sql.Expression, len(s.Values))
		for r, tuple := range s.Values {
			row := make([]sql.Expression, len(targetCols))
			for i := range targetCols {
				e, err := b.buildExpr(tuple[i], sc)
				if err != nil {
					return nil, err
				}
				row[i] = e
			}
			rows[r] = row
		}
		source = relBuild{Node: plan.NewValues(rows, attrs, sql.RelationalType{Columns: cols}), Attrs: attrs}
	}

	fullSource := reorderToSchema(b, source, schema, targetCols)

	policy := conflictPolicyOf(s.OnConflict)
	insertNode := plan.NewInsert(table, schema, fullSource.Node, policy)

	if len(s.Returning) == 0 {
		return &Plan{Node: insertNode}, nil
	}
	returningScope := flatRowScope(b, schema)
	proj, cols, err := b.buildProjection(relBuild{Node: insertNode, Attrs: returningScope.attrs}, s.Returning, returningScope.scope)
	if err != nil {
		return nil, err
	}
	return &Plan{Node: proj.Node, ColumnNames: cols}, nil
}

// reorderToSchema wraps source in a Project that maps targetCols (in
// whatever order the statement specified) into the table's declared
// column order, filling any column not named in targetCols with its
// declared Default expression (or NULL if none).
func reorderToSchema(b *Builder, source relBuild, schema *sql.TableSchema, targetCols []string) relBuild {
	projs := make([]plan.Projection, len(schema.Columns))
	attrs := make([]sql.AttributeID, len(schema.Columns))
	for i, col := range schema.Columns {
		attrs[i] = b.Attrs.Next()
		pos := indexOf(targetCols, col.Name)
		if pos >= 0 {
			projs[i] = plan.Projection{Expr: refAttr(source.Attrs[pos], col), Attribute: attrs[i], Alias: col.Name}
			continue
		}
		def := col.Default
		if def == nil {
			def = nullLiteral(col)
		}
		projs[i] = plan.Projection{Expr: def, Attribute: attrs[i], Alias: col.Name}
	}
	node := plan.NewProject(source.Node, projs, descriptorOf(source.Attrs))
	return relBuild{Node: node, Attrs: attrs}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func refAttr(attr sql.AttributeID, col sql.Column) sql.Expression {
	return colRefLiteral(attr, col)
}

// buildUpdate implements spec §4.1's "UPDATE / DELETE building": scan the
// table, resolve WHERE/assignments against its columns, build Update.
func (b *Builder) buildUpdate(s *ast.UpdateStatement, outer scope.Scope) (*Plan, error) {
	sc := outer
	if s.With != nil {
		env, err := b.buildWith(s.With, outer)
		if err != nil {
			return nil, err
		}
		sc = &cteAwareScope{Scope: outer, env: env}
	}
	src := ast.FromSource{Table: s.Table, Alias: s.Alias}
	rb, err := b.buildTableSource(src)
	if err != nil {
		return nil, err
	}
	combined := scope.NewMultiScope(rb.Scope, sc)

	schema, table, ok := b.Catalog.Table("", s.Table)
	if !ok {
		return nil, sql.ErrUnknownTable.New(s.Table)
	}
	if schema.IsReadOnly {
		return nil, sql.ErrTableIsReadOnly.New(s.Table)
	}

	cur := rb
	if s.Where != nil {
		pred, err := b.buildExpr(s.Where, combined)
		if err != nil {
			return nil, err
		}
		cur.Node = plan.NewFilter(cur.Node, pred, descriptorOf(cur.Attrs))
	}

	assignments := make([]plan.Assignment, len(s.Set))
	for i, a := range s.Set {
		idx := schema.ColumnIndex(a.Column)
		if idx < 0 {
			return nil, sql.ErrUnknownColumn.New(a.Column)
		}
		e, err := b.buildExpr(a.Value, combined)
		if err != nil {
			return nil, err
		}
		assignments[i] = plan.Assignment{ColumnIndex: idx, Expr: e}
	}

	updateNode := plan.NewUpdate(table, schema, cur.Node, assignments, descriptorOf(cur.Attrs), vtab.ConflictAbort)

	if len(s.Returning) == 0 {
		return &Plan{Node: updateNode}, nil
	}
	returningScope := flatRowScope(b, schema)
	proj, cols, err := b.buildProjection(relBuild{Node: updateNode, Attrs: returningScope.attrs}, s.Returning, returningScope.scope)
	if err != nil {
		return nil, err
	}
	return &Plan{Node: proj.Node, ColumnNames: cols}, nil
}

func (b *Builder) buildDelete(s *ast.DeleteStatement, outer scope.Scope) (*Plan, error) {
	sc := outer
	if s.With != nil {
		env, err := b.buildWith(s.With, outer)
		if err != nil {
			return nil, err
		}
		sc = &cteAwareScope{Scope: outer, env: env}
	}
	src := ast.FromSource{Table: s.Table, Alias: s.Alias}
	rb, err := b.buildTableSource(src)
	if err != nil {
		return nil, err
	}
	combined := scope.NewMultiScope(rb.Scope, sc)

	schema, table, ok := b.Catalog.Table("", s.Table)
	if !ok {
		return nil, sql.ErrUnknownTable.New(s.Table)
	}
	if schema.IsReadOnly {
		return nil, sql.ErrTableIsReadOnly.New(s.Table)
	}

	cur := rb
	if s.Where != nil {
		pred, err := b.buildExpr(s.Where, combined)
		if err != nil {
			return nil, err
		}
		cur.Node = plan.NewFilter(cur.Node, pred, descriptorOf(cur.Attrs))
	}

	deleteNode := plan.NewDelete(table, schema, cur.Node, vtab.ConflictAbort)

	if len(s.Returning) == 0 {
		return &Plan{Node: deleteNode}, nil
	}
	returningScope := flatRowScope(b, schema)
	proj, cols, err := b.buildProjection(relBuild{Node: deleteNode, Attrs: returningScope.attrs}, s.Returning, returningScope.scope)
	if err != nil {
		return nil, err
	}
	return &Plan{Node: proj.Node, ColumnNames: cols}, nil
}

// flatScope is the scope a RETURNING clause resolves against: every
// column twice, once as "old.col" and once as "new.col" (spec §3 "Flat
// row"), matching the OLD/NEW column order plan.mutationBase.flatType
// produces.
type flatScope struct {
	scope scope.Scope
	attrs []sql.AttributeID
}

func flatRowScope(b *Builder, schema *sql.TableSchema) flatScope {
	n := len(schema.Columns)
	attrs := make([]sql.AttributeID, 0, n*2)
	var bindings []scope.Binding
	for _, prefix := range []string{"old", "new"} {
		for _, c := range schema.Columns {
			attr := b.Attrs.Next()
			attrs = append(attrs, attr)
			bindings = append(bindings, scope.Binding{Attribute: attr, Type: scalarTypeOf(c), Table: prefix, Column: c.Name})
		}
	}
	return flatScope{scope: scope.NewRegisteredScope("", bindings), attrs: attrs}
}

package planbuilder

import (
	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/scope"
)

// buildCreateTable translates a CREATE TABLE statement into a
// sql.TableSchema descriptor; applying it against the live catalog is
// package catalog's job (spec §4.6 "Schema catalog & differ"), not the
// planner's — the builder only describes the statement's effect.
func (b *Builder) buildCreateTable(s *ast.CreateTableStatement) (*Plan, error) {
	cols := make([]sql.Column, len(s.Columns))
	var pk sql.PrimaryKey
	for i, cd := range s.Columns {
		var def sql.Expression
		if cd.Default != nil {
			e, err := b.buildExpr(cd.Default, scope.NewMultiScope())
			if err != nil {
				return nil, err
			}
			def = e
		}
		cols[i] = sql.Column{
			Name:      cd.Name,
			Affinity:  affinityOf(cd.Affinity),
			Nullable:  !cd.NotNull,
			Default:   def,
			Collation: cd.Collation,
		}
		if cd.PrimaryKey {
			cols[i].PKOrder = len(pk.Columns) + 1
			pk.Columns = append(pk.Columns, sql.IndexColumn{ColumnIndex: i, Descending: cd.Descending})
		}
	}
	checks := make([]sql.CheckConstraint, len(s.Checks))
	for i, c := range s.Checks {
		e, err := b.buildExpr(c.Expr, columnScope(cols))
		if err != nil {
			return nil, err
		}
		checks[i] = sql.CheckConstraint{Name: c.Name, Expr: e, Ops: sql.RowOpAll}
	}
	module := s.Module
	if module == "" {
		module = "memory"
	}
	schema := &sql.TableSchema{
		Name:        s.Table,
		SchemaName:  s.SchemaName,
		Columns:     cols,
		PrimaryKey:  pk,
		Checks:      checks,
		Module:      module,
		ModuleArgs:  s.ModuleArgs,
		IsTemporary: s.Temporary,
	}
	return &Plan{DDL: &DDLPlan{CreateTable: schema}}, nil
}

// columnScope lets a CHECK expression resolve bare column names against
// the table being created, before it has a catalog entry or attribute IDs
// of its own. Column i gets attribute ID i+1; the constraint engine
// (sql/constraints) evaluates CHECKs under a descriptor that maps exactly
// these IDs onto the row's columns, so this is the numbering CHECK
// expressions run against.
func columnScope(cols []sql.Column) scope.Scope {
	bindings := make([]scope.Binding, len(cols))
	for i, c := range cols {
		bindings[i] = scope.Binding{Attribute: sql.AttributeID(i + 1), Type: scalarTypeOf(c), Column: c.Name}
	}
	return scope.NewRegisteredScope("", bindings)
}

func (b *Builder) buildCreateIndex(s *ast.CreateIndexStatement) (*Plan, error) {
	cols := make([]sql.IndexColumn, len(s.Columns))
	schema, _, ok := b.Catalog.Table("", s.Table)
	if !ok {
		return nil, sql.ErrUnknownTable.New(s.Table)
	}
	for i, c := range s.Columns {
		idx := schema.ColumnIndex(c.Column)
		if idx < 0 {
			return nil, sql.ErrUnknownColumn.New(c.Column)
		}
		cols[i] = sql.IndexColumn{ColumnIndex: idx, Descending: c.Descending, Collation: c.Collation}
	}
	index := &sql.Index{Name: s.Name, Columns: cols, Unique: s.Unique}
	return &Plan{DDL: &DDLPlan{CreateIndex: index, OnTable: s.Table}}, nil
}

func (b *Builder) buildCreateView(s *ast.CreateViewStatement, outer scope.Scope) (*Plan, error) {
	rb, cols, err := b.buildQueryBody(s.Query, outer)
	if err != nil {
		return nil, err
	}
	relType := rb.Node.RelType()
	schemaCols := make([]sql.Column, len(relType.Columns))
	for i, c := range relType.Columns {
		name := c.Name
		if i < len(cols) && cols[i] != "" {
			name = cols[i]
		}
		schemaCols[i] = sql.Column{Name: name, Affinity: c.Affinity, Nullable: c.Nullable}
	}
	schema := &sql.TableSchema{
		Name:       s.Name,
		SchemaName: s.SchemaName,
		Columns:    schemaCols,
		IsView:     true,
		IsReadOnly: true,
	}
	return &Plan{DDL: &DDLPlan{CreateView: schema}}, nil
}

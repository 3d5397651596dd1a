// Package planbuilder translates a parsed ast.Statement into a tree of
// sql.Node/sql.Expression plan nodes, resolving names through the sql/scope
// stack and allocating sql.AttributeIDs for every column a scope exposes
// (spec §4.1 "Planner/Builder"). It is the one package allowed to import
// both sql/plan and sql/expression concretely.
package planbuilder

import (
	"fmt"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
	"github.com/Digithought/quereus-sub010/sql/scope"
	"github.com/Digithought/quereus-sub010/vtab"
)

// Catalog is the narrow surface the builder needs from the schema catalog
// (package catalog implements it); kept here rather than imported to avoid
// a planbuilder<->catalog import cycle, since catalog's differ builds
// declared-AST schemas using this same package.
type Catalog interface {
	Table(schemaName, name string) (*sql.TableSchema, vtab.Table, bool)
	Functions() *sql.FunctionRegistry
}

// Builder holds the state threaded through one statement's build: the
// catalog, the attribute allocator (spec §3 "Attribute IDs are globally
// unique and monotonic within a plan"), and a running count of positional
// bind parameters encountered so far.
type Builder struct {
	Catalog Catalog
	Attrs   *sql.AttributeAllocator
	// Runner lets built EXISTS/IN/scalar-subquery expressions execute their
	// subplans later, at evaluation time; supplied by the emitter package,
	// which implements sql.SubqueryRunner.
	Runner sql.SubqueryRunner

	nextPositional int

	// aggSubst maps an aggregate-function-call AST node (by pointer
	// identity within the statement being built) to the ColumnReference
	// reading its value out of the enclosing Aggregate node's output.
	// Populated by buildAggregate, consulted by buildExpr, cleared once
	// projection for that SELECT is built.
	aggSubst map[ast.Expr]*expression.ColumnReference
}

func NewBuilder(catalog Catalog, attrs *sql.AttributeAllocator, runner sql.SubqueryRunner) *Builder {
	return &Builder{Catalog: catalog, Attrs: attrs, Runner: runner}
}

// Plan is one built statement: its relational plan tree (nil for DDL),
// its DDL schema descriptor (nil for DML/queries), and the RETURNING /
// SELECT-list column names for the statement API to expose.
type Plan struct {
	Node        sql.Node
	ColumnNames []string
	DDL         *DDLPlan
}

// DDLPlan describes a CREATE TABLE/INDEX/VIEW statement's effect, handed to
// package catalog to apply (spec §4.6 "Schema catalog & differ").
type DDLPlan struct {
	CreateTable *sql.TableSchema
	CreateIndex *sql.Index
	OnTable     string
	CreateView  *sql.TableSchema
}

// Build dispatches on the statement's concrete AST type (spec §4.1 "SELECT
// building" / "UPDATE / DELETE building" / DDL), the way the teacher's
// planbuilder type-switches over vitess AST nodes.
func (b *Builder) Build(stmt ast.Statement, outer scope.Scope) (*Plan, error) {
	switch s := stmt.(type) {
	case *ast.SelectStatement:
		return b.buildSelectStatement(s, outer)
	case *ast.SetOperation:
		node, cols, err := b.buildSetOperation(s, outer)
		if err != nil {
			return nil, err
		}
		return &Plan{Node: node, ColumnNames: cols}, nil
	case *ast.InsertStatement:
		return b.buildInsert(s, outer)
	case *ast.UpdateStatement:
		return b.buildUpdate(s, outer)
	case *ast.DeleteStatement:
		return b.buildDelete(s, outer)
	case *ast.CreateTableStatement:
		return b.buildCreateTable(s)
	case *ast.CreateIndexStatement:
		return b.buildCreateIndex(s)
	case *ast.CreateViewStatement:
		return b.buildCreateView(s, outer)
	default:
		return nil, sql.ErrUnsupported.New(fmt.Sprintf("statement type %T", stmt))
	}
}

func affinityOf(name string) sql.Affinity {
	switch name {
	case "INTEGER", "INT":
		return sql.AffinityInteger
	case "REAL", "FLOAT", "DOUBLE":
		return sql.AffinityReal
	case "BLOB":
		return sql.AffinityBlob
	case "NUMERIC", "DECIMAL":
		return sql.AffinityNumeric
	default:
		return sql.AffinityText
	}
}

func scalarTypeOf(c sql.Column) sql.ScalarType {
	return sql.ScalarType{Affinity: c.Affinity, Nullable: c.Nullable, Collation: c.Collation}
}

func columnRef(b sql.AttributeID, binding scope.Binding) *expression.ColumnReference {
	return expression.NewColumnReference(b, binding.Table, binding.Column, binding.Type)
}

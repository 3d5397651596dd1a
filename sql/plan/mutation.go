package plan

import (
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

// Assignment is one `col = expr` pair of an UPDATE's SET clause, resolved
// to a column index within the table's schema.
type Assignment struct {
	ColumnIndex int
	Expr        sql.Expression
}

// mutationBase is shared by Insert/Update/Delete: every mutation node's
// natural output is a stream of flat rows (OLD columns then NEW columns,
// spec §3 "Flat row"); RETURNING wraps that stream in a Project, and a
// pure-DML statement with no RETURNING simply drains and discards it
// (spec §4.2).
type mutationBase struct {
	Table  vtab.Table
	Schema *sql.TableSchema
	Policy vtab.ConflictPolicy
}

func (m *mutationBase) flatType() sql.RelationalType {
	n := len(m.Schema.Columns)
	cols := make([]sql.Column, 0, n*2)
	for _, prefix := range []string{"old", "new"} {
		for _, c := range m.Schema.Columns {
			cols = append(cols, sql.Column{Name: prefix + "." + c.Name, Affinity: c.Affinity, Nullable: true})
		}
	}
	return sql.RelationalType{Columns: cols}
}

// Insert evaluates Source (a row producer in the table's column order) and
// writes each resulting row as a new row via the table's Connection.Update
// (spec §4.1 "UPDATE / DELETE building", §4.5).
type Insert struct {
	mutationBase
	Source sql.Node
}

func NewInsert(table vtab.Table, schema *sql.TableSchema, source sql.Node, policy vtab.ConflictPolicy) *Insert {
	return &Insert{mutationBase: mutationBase{Table: table, Schema: schema, Policy: policy}, Source: source}
}

func (i *Insert) Children() []sql.Node        { return []sql.Node{i.Source} }
func (i *Insert) RelType() sql.RelationalType { return i.flatType() }
func (i *Insert) Estimate() sql.Estimate      { return i.Source.Estimate() }
func (i *Insert) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ T string }{i.Schema.Name}, i.Source.Identity())
}
func (i *Insert) String() string { return "Insert(" + i.Schema.Name + ")" }

// Update scans Source for OLD rows, applies Assignments to compute NEW
// rows, and writes them via Connection.Update.
type Update struct {
	mutationBase
	Source      sql.Node
	Assignments []Assignment
	// Descriptor maps the attribute IDs Assignments' expressions and the
	// table's CHECK constraints may reference to their column index within
	// a row Source yields (the OLD row); the emitter derives the NEW row's
	// own flat-row attribute context separately once Assignments are applied.
	Descriptor sql.RowDescriptor
}

func NewUpdate(table vtab.Table, schema *sql.TableSchema, source sql.Node, assignments []Assignment, descriptor sql.RowDescriptor, policy vtab.ConflictPolicy) *Update {
	return &Update{mutationBase: mutationBase{Table: table, Schema: schema, Policy: policy}, Source: source, Assignments: assignments, Descriptor: descriptor}
}

func (u *Update) Children() []sql.Node        { return []sql.Node{u.Source} }
func (u *Update) RelType() sql.RelationalType { return u.flatType() }
func (u *Update) Estimate() sql.Estimate      { return u.Source.Estimate() }
func (u *Update) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ T string }{u.Schema.Name}, u.Source.Identity())
}
func (u *Update) String() string { return "Update(" + u.Schema.Name + ")" }

// Delete scans Source for OLD rows and removes each via Connection.Update.
type Delete struct {
	mutationBase
	Source sql.Node
}

func NewDelete(table vtab.Table, schema *sql.TableSchema, source sql.Node, policy vtab.ConflictPolicy) *Delete {
	return &Delete{mutationBase: mutationBase{Table: table, Schema: schema, Policy: policy}, Source: source}
}

func (d *Delete) Children() []sql.Node        { return []sql.Node{d.Source} }
func (d *Delete) RelType() sql.RelationalType { return d.flatType() }
func (d *Delete) Estimate() sql.Estimate      { return d.Source.Estimate() }
func (d *Delete) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ T string }{d.Schema.Name}, d.Source.Identity())
}
func (d *Delete) String() string { return "Delete(" + d.Schema.Name + ")" }

// ConstraintCheck wraps a flat-row stream, running the immediate NOT
// NULL/CHECK evaluators on each row (PRIMARY KEY is left to the storage
// module) without writing anything (spec §4.4). It passes every row through
// unchanged on success; a failing row raises a constraint error. Deferred
// CHECKs are neither evaluated nor queued by this node, and sql/planbuilder
// does not build it: the mutation emitters run the same checks inline.
type ConstraintCheck struct {
	unaryNode
	Schema *sql.TableSchema
	Op     sql.RowOp
	// Descriptor maps each column's attribute IDs (old then new) to their
	// position in the flat row, for evaluator expressions to read.
	Descriptor sql.RowDescriptor
}

func NewConstraintCheck(input sql.Node, schema *sql.TableSchema, op sql.RowOp, descriptor sql.RowDescriptor) *ConstraintCheck {
	return &ConstraintCheck{unaryNode: unaryNode{Input: input}, Schema: schema, Op: op, Descriptor: descriptor}
}

func (c *ConstraintCheck) RelType() sql.RelationalType { return c.Input.RelType() }
func (c *ConstraintCheck) Estimate() sql.Estimate      { return c.Input.Estimate() }
func (c *ConstraintCheck) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ T string }{c.Schema.Name}, c.Input.Identity())
}
func (c *ConstraintCheck) String() string { return "ConstraintCheck(" + c.Schema.Name + ")" }

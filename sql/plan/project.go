package plan

import "github.com/Digithought/quereus-sub010/sql"

// Projection is one output column of a Project node.
type Projection struct {
	Expr      sql.Expression
	Attribute sql.AttributeID
	Alias     string
}

// Project wraps Input, evaluating Projections per input row to produce the
// output row (spec §4.1 "SELECT building" step 4).
type Project struct {
	unaryNode
	Projections []Projection
	// Descriptor maps the attribute IDs Projections' expressions may
	// reference to column indices within a row Input yields.
	Descriptor sql.RowDescriptor
}

func NewProject(input sql.Node, projections []Projection, descriptor sql.RowDescriptor) *Project {
	return &Project{unaryNode: unaryNode{Input: input}, Projections: projections, Descriptor: descriptor}
}

func (p *Project) RelType() sql.RelationalType {
	cols := make([]sql.Column, len(p.Projections))
	for i, proj := range p.Projections {
		t := proj.Expr.Type()
		cols[i] = sql.Column{Name: proj.Alias, Affinity: t.Affinity, Nullable: t.Nullable}
	}
	return sql.RelationalType{Columns: cols, ReadOnly: true}
}

func (p *Project) Estimate() sql.Estimate { return p.Input.Estimate() }

func (p *Project) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ N int }{len(p.Projections)}, p.Input.Identity())
}

func (p *Project) String() string { return "Project" }

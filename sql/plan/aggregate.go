package plan

import "github.com/Digithought/quereus-sub010/sql"

// AggregateExpr is one aggregate-function projection of an Aggregate node.
type AggregateExpr struct {
	Fn        sql.AggregateFunction
	Args      []sql.Expression
	Attribute sql.AttributeID
	Alias     string
}

// Aggregate groups Input's rows by GroupBy and computes Aggregates per
// group, preserving group-arrival order for a single group (spec §5
// "Ordering guarantees"). Built whenever the SELECT list contains an
// aggregate expression (spec §4.1 step 3).
type Aggregate struct {
	unaryNode
	GroupBy    []sql.Expression
	GroupAttrs []sql.AttributeID
	Aggregates []AggregateExpr
	Descriptor sql.RowDescriptor
}

func NewAggregate(input sql.Node, groupBy []sql.Expression, groupAttrs []sql.AttributeID, aggs []AggregateExpr, descriptor sql.RowDescriptor) *Aggregate {
	return &Aggregate{unaryNode: unaryNode{Input: input}, GroupBy: groupBy, GroupAttrs: groupAttrs, Aggregates: aggs, Descriptor: descriptor}
}

func (a *Aggregate) RelType() sql.RelationalType {
	cols := make([]sql.Column, 0, len(a.GroupBy)+len(a.Aggregates))
	for _, g := range a.GroupBy {
		t := g.Type()
		cols = append(cols, sql.Column{Name: "", Affinity: t.Affinity, Nullable: true})
	}
	for _, agg := range a.Aggregates {
		t := agg.Fn.ReturnType(argTypes(agg.Args))
		cols = append(cols, sql.Column{Name: agg.Alias, Affinity: t.Affinity, Nullable: t.Nullable})
	}
	return sql.RelationalType{Columns: cols, ReadOnly: true}
}

func argTypes(args []sql.Expression) []sql.ScalarType {
	out := make([]sql.ScalarType, len(args))
	for i, a := range args {
		out[i] = a.Type()
	}
	return out
}

func (a *Aggregate) Estimate() sql.Estimate {
	in := a.Input.Estimate()
	if len(a.GroupBy) == 0 {
		return sql.Estimate{Cost: in.Cost + float64(in.Rows), Rows: 1}
	}
	// Heuristic: assume moderate cardinality reduction.
	rows := in.Rows/4 + 1
	return sql.Estimate{Cost: in.Cost + float64(in.Rows), Rows: rows}
}

func (a *Aggregate) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ G, A int }{len(a.GroupBy), len(a.Aggregates)}, a.Input.Identity())
}

func (a *Aggregate) String() string { return "Aggregate" }

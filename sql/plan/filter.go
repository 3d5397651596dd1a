package plan

import "github.com/Digithought/quereus-sub010/sql"

// Filter wraps Input, yielding only rows where Predicate evaluates truthy
// (spec §4.1 "SELECT building" step 2).
type Filter struct {
	unaryNode
	Predicate sql.Expression
	// Descriptor maps the attribute IDs visible to Predicate to their
	// column index within a row Input yields, so the emitter can install
	// the right scope frame while evaluating Predicate per row.
	Descriptor sql.RowDescriptor
}

func NewFilter(input sql.Node, predicate sql.Expression, descriptor sql.RowDescriptor) *Filter {
	return &Filter{unaryNode: unaryNode{Input: input}, Predicate: predicate, Descriptor: descriptor}
}

func (f *Filter) RelType() sql.RelationalType { return f.Input.RelType() }

func (f *Filter) Estimate() sql.Estimate {
	in := f.Input.Estimate()
	// A conservative default selectivity; real cost-based selectivity
	// estimation is out of scope for this core.
	const selectivity = 0.33
	return sql.Estimate{Cost: in.Cost + float64(in.Rows)*0.1, Rows: int64(float64(in.Rows) * selectivity)}
}

func (f *Filter) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ Op string }{"filter"}, f.Input.Identity())
}

func (f *Filter) String() string { return "Filter(" + f.Predicate.String() + ")" }

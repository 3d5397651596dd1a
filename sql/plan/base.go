// Package plan implements the relational plan-node variants (spec.md §9:
// "Project | Filter | Sort | Scan | Aggregate | TableFunctionCall |
// LimitOffset | Mutation | ConstraintCheck | ..."). Each node type
// implements sql.Node; the instruction emitter (package sql/program) walks
// these with a type switch to build executable row iterators, the way the
// teacher's sql/rowexec package builds iterators from sql/plan nodes.
package plan

import "github.com/Digithought/quereus-sub010/sql"

// unaryNode is embedded by every node with exactly one relational input, to
// avoid repeating Children()/Estimate() boilerplate.
type unaryNode struct {
	Input sql.Node
}

func (u *unaryNode) Children() []sql.Node { return []sql.Node{u.Input} }

// estimateFromInput is the common default: operators that don't change row
// count carry their input's estimate forward unchanged; callers needing a
// different model (Aggregate, LimitOffset, Filter selectivity) override it.
func estimateFromInput(input sql.Node, costPerRow float64) sql.Estimate {
	in := input.Estimate()
	return sql.Estimate{Cost: in.Cost + float64(in.Rows)*costPerRow, Rows: in.Rows}
}

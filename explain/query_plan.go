package explain

import (
	"strings"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/sql/planbuilder"
)

// PlanRow is one row query_plan(sql) yields (spec §4.7).
type PlanRow struct {
	ID            int
	ParentID      int // 0 for the root node
	SubqueryLevel int
	Op            string
	Detail        string
	ObjectName    string
	Alias         string
	EstimatedCost float64
	EstimatedRows int64
}

// QueryPlan reparses sqlText, rebuilds its plan against cat, and flattens
// the resulting sql.Node tree into one PlanRow per node — including nodes
// reachable only through a nested EXISTS/IN/scalar subquery, reported at
// an incremented SubqueryLevel (spec §4.7 "query_plan(sql): ... walk the
// tree yielding one row per node").
func QueryPlan(parser Parser, cat planbuilder.Catalog, sqlText string) ([]PlanRow, error) {
	p, err := buildPlan(parser, cat, sqlText)
	if err != nil {
		return nil, err
	}
	if p.Node == nil {
		return nil, nil // DDL statements have no relational plan to walk
	}

	var rows []PlanRow
	next := 1
	var walk func(n sql.Node, parentID, level int)
	walk = func(n sql.Node, parentID, level int) {
		id := next
		next++
		est := n.Estimate()
		row := PlanRow{
			ID: id, ParentID: parentID, SubqueryLevel: level,
			Op: opOf(n.String()), Detail: n.String(),
			EstimatedCost: est.Cost, EstimatedRows: est.Rows,
		}
		if ts, ok := n.(*plan.TableScan); ok {
			row.ObjectName = ts.TableName
			row.Alias = ts.Alias
		}
		rows = append(rows, row)

		for _, c := range n.Children() {
			walk(c, id, level)
		}
		for _, expr := range plan.ScalarExpressionsOf(n) {
			if expr == nil {
				continue
			}
			for _, sub := range collectSubqueries(expr) {
				walk(sub, id, level+1)
			}
		}
	}
	walk(p.Node, 0, 0)
	return rows, nil
}

// opOf extracts a node's operator name from its String() rendering, e.g.
// "Filter(x > 1)" -> "Filter", "INNER JOIN" -> "INNER JOIN" (no paren
// present, the whole string is the op). Reusing String() instead of a
// parallel per-node-type name table keeps this in lockstep with whatever
// sql/plan node kinds exist without a second switch to maintain here.
func opOf(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		return s[:i]
	}
	return s
}

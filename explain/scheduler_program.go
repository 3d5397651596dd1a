package explain

import (
	"fmt"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/sql/planbuilder"
)

// ProgramRow is one row scheduler_program(sql) yields (spec §4.7). This
// engine's scheduler does not build an explicit instruction DAG with its
// own addresses the way spec §3's "Instruction" sum type describes — the
// instruction emitter (package sql/program) opens a sql.Node tree directly
// into nested pull-based sql.RowIters (see that package's doc comment) —
// so Address here is synthesized from the same post-order walk a real
// instruction-emission pass would perform, one address per plan node, in
// the order the emitter's Open would recurse into them.
type ProgramRow struct {
	Address       int
	InstructionID string
	Dependencies  []int // addresses this instruction's Open call recurses into first
	Description   string
	IsSubprogram  bool // true for a node reached through a nested subquery
	ParentAddress int  // 0 for a top-level instruction
}

// SchedulerProgram reparses sqlText, rebuilds its plan against cat, and
// synthesizes one instruction row per plan node in emission order (spec
// §4.7 "build plan, emit instructions, yield one row per instruction").
func SchedulerProgram(parser Parser, cat planbuilder.Catalog, sqlText string) ([]ProgramRow, error) {
	p, err := buildPlan(parser, cat, sqlText)
	if err != nil {
		return nil, err
	}
	if p.Node == nil {
		return nil, nil
	}

	var rows []ProgramRow
	next := 1
	var walk func(n sql.Node, parentAddr int, isSub bool) int
	walk = func(n sql.Node, parentAddr int, isSub bool) int {
		addr := next
		next++
		var deps []int
		for _, c := range n.Children() {
			deps = append(deps, walk(c, addr, isSub))
		}
		for _, expr := range plan.ScalarExpressionsOf(n) {
			if expr == nil {
				continue
			}
			for _, sub := range collectSubqueries(expr) {
				deps = append(deps, walk(sub, addr, true))
			}
		}
		rows = append(rows, ProgramRow{
			Address:       addr,
			InstructionID: fmt.Sprintf("i%d", addr),
			Dependencies:  deps,
			Description:   n.String(),
			IsSubprogram:  isSub,
			ParentAddress: parentAddr,
		})
		return addr
	}
	walk(p.Node, 0, false)
	return rows, nil
}

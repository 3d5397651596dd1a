package plan

import "github.com/Digithought/quereus-sub010/sql"

type SortTerm struct {
	Expr       sql.Expression
	Descending bool
}

// Sort wraps Input, materializing and re-ordering its rows. The planner
// builds one for every ORDER BY; it does not consult a scan's
// OrderByConsumed flag to leave it out.
type Sort struct {
	unaryNode
	Terms      []SortTerm
	Descriptor sql.RowDescriptor
}

func NewSort(input sql.Node, terms []SortTerm, descriptor sql.RowDescriptor) *Sort {
	return &Sort{unaryNode: unaryNode{Input: input}, Terms: terms, Descriptor: descriptor}
}

func (s *Sort) RelType() sql.RelationalType { return s.Input.RelType() }

func (s *Sort) Estimate() sql.Estimate {
	in := s.Input.Estimate()
	// n log n materialization cost.
	cost := in.Cost + float64(in.Rows)*logCostFactor(in.Rows)
	return sql.Estimate{Cost: cost, Rows: in.Rows}
}

func logCostFactor(rows int64) float64 {
	if rows < 2 {
		return 1
	}
	n := float64(rows)
	l := 1.0
	for r := n; r > 1; r /= 2 {
		l++
	}
	return l
}

func (s *Sort) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ N int }{len(s.Terms)}, s.Input.Identity())
}

func (s *Sort) String() string { return "Sort" }

// LimitOffset wraps Input, dropping the first Offset rows (if any) and
// stopping after Limit further rows (if set).
type LimitOffset struct {
	unaryNode
	Limit  sql.Expression // nil = unbounded
	Offset sql.Expression // nil = 0
}

func NewLimitOffset(input sql.Node, limit, offset sql.Expression) *LimitOffset {
	return &LimitOffset{unaryNode: unaryNode{Input: input}, Limit: limit, Offset: offset}
}

func (l *LimitOffset) RelType() sql.RelationalType { return l.Input.RelType() }
func (l *LimitOffset) Estimate() sql.Estimate      { return l.Input.Estimate() }

func (l *LimitOffset) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ Op string }{"limitoffset"}, l.Input.Identity())
}

func (l *LimitOffset) String() string { return "LimitOffset" }

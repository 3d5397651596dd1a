package plan

import "github.com/Digithought/quereus-sub010/sql"

// JoinKind selects the supported join strategies. spec.md's Open Questions
// leave joins unsupported, noting the only prior-art Join shape lived in a
// superseded planner; per the REDESIGN FLAG this applies, Join is rebuilt
// fresh here, consistent with the rest of the post-rewrite plan-node
// surface: nested-loop only, inner or left.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
)

func (k JoinKind) String() string {
	if k == JoinLeft {
		return "LEFT"
	}
	return "INNER"
}

// Join composes Left and Right by nested-loop evaluation of On per pair,
// concatenating both sides' attributes into the output row (Left's columns
// followed by Right's). A JoinLeft emits Right's columns as NULL when no
// match is found for a given Left row.
type Join struct {
	Left, Right sql.Node
	Kind        JoinKind
	On          sql.Expression
	// Descriptor maps the attribute IDs On may reference to column
	// indices within the concatenated (Left-columns, Right-columns) row.
	Descriptor sql.RowDescriptor
}

func NewJoin(left, right sql.Node, kind JoinKind, on sql.Expression, descriptor sql.RowDescriptor) *Join {
	return &Join{Left: left, Right: right, Kind: kind, On: on, Descriptor: descriptor}
}

func (j *Join) Children() []sql.Node { return []sql.Node{j.Left, j.Right} }

func (j *Join) RelType() sql.RelationalType {
	lt := j.Left.RelType()
	rt := j.Right.RelType()
	cols := make([]sql.Column, 0, len(lt.Columns)+len(rt.Columns))
	cols = append(cols, lt.Columns...)
	for _, c := range rt.Columns {
		if j.Kind == JoinLeft {
			c.Nullable = true
		}
		cols = append(cols, c)
	}
	return sql.RelationalType{Columns: cols, ReadOnly: true}
}

func (j *Join) Estimate() sql.Estimate {
	l, r := j.Left.Estimate(), j.Right.Estimate()
	return sql.Estimate{
		Cost: l.Cost + r.Cost + float64(l.Rows)*float64(r.Rows)*0.01,
		Rows: l.Rows * r.Rows / 4,
	}
}

func (j *Join) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ K JoinKind }{j.Kind}, j.Left.Identity(), j.Right.Identity())
}

func (j *Join) String() string { return j.Kind.String() + " JOIN" }

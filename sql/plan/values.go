package plan

import "github.com/Digithought/quereus-sub010/sql"

// Values is a leaf node producing literal rows from a VALUES clause
// (spec §4.1's INSERT building: "VALUES (...), (...)").
type Values struct {
	Rows  [][]sql.Expression
	Attrs []sql.AttributeID
	typ   sql.RelationalType
}

func NewValues(rows [][]sql.Expression, attrs []sql.AttributeID, typ sql.RelationalType) *Values {
	return &Values{Rows: rows, Attrs: attrs, typ: typ}
}

func (v *Values) RelType() sql.RelationalType { return v.typ }
func (v *Values) Children() []sql.Node        { return nil }
func (v *Values) Estimate() sql.Estimate {
	return sql.Estimate{Cost: float64(len(v.Rows)), Rows: int64(len(v.Rows))}
}
func (v *Values) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ N int }{len(v.Rows)})
}
func (v *Values) String() string { return "Values" }

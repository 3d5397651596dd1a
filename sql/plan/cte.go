package plan

import "github.com/Digithought/quereus-sub010/sql"

// Materialize compiles a CTE once into an ephemeral table, draining Source
// into it the first time it runs; subsequent references read the table
// through EphemeralScan (spec §4.1 "CTEs (WITH)" — materialized strategy).
type Materialize struct {
	unaryNode
	Name  string
	Attrs []sql.AttributeID
}

func NewMaterialize(name string, source sql.Node, attrs []sql.AttributeID) *Materialize {
	return &Materialize{unaryNode: unaryNode{Input: source}, Name: name, Attrs: attrs}
}

func (m *Materialize) RelType() sql.RelationalType { return m.Input.RelType() }
func (m *Materialize) Estimate() sql.Estimate      { return m.Input.Estimate() }
func (m *Materialize) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ Name string }{m.Name}, m.Input.Identity())
}
func (m *Materialize) String() string { return "Materialize(" + m.Name + ")" }

// EphemeralScan reads back rows from a Materialize (or RecursiveCTE) node's
// ephemeral table. Source is the producing node (so the emitter's
// dependency ordering runs it first); the scan itself reads the rows
// cached under Source's Identity() once Source has produced them.
type EphemeralScan struct {
	unaryNode // Input = the Materialize/RecursiveCTE node that owns the table
	Name      string
	Attrs     []sql.AttributeID
	typ       sql.RelationalType
}

func NewEphemeralScan(name string, source sql.Node, attrs []sql.AttributeID, typ sql.RelationalType) *EphemeralScan {
	return &EphemeralScan{unaryNode: unaryNode{Input: source}, Name: name, Attrs: attrs, typ: typ}
}

func (e *EphemeralScan) RelType() sql.RelationalType { return e.typ }
func (e *EphemeralScan) Estimate() sql.Estimate      { return e.Input.Estimate() }
func (e *EphemeralScan) Identity() sql.NodeIdentity {
	// Deliberately distinct from the producer's own identity and from
	// other scans of the same table: each reference site gets its own
	// cursor, but all share the single producing instruction as a param.
	return sql.StructuralIdentity(struct {
		Name string
		Tag  string
	}{e.Name, "scan"}, e.Input.Identity())
}
func (e *EphemeralScan) String() string { return "EphemeralScan(" + e.Name + ")" }

// RowCell is a one-row mutable cell a RecursiveCTE executor updates before
// each invocation of the recursive term's instruction; SelfReference reads
// whatever row is currently held.
type RowCell struct {
	Row sql.Row
}

// SelfReference is the recursive term's reference back to the CTE's own
// name (spec §4.1 "Recursive CTEs"). It is bound, once per queue-row
// iteration, to exactly the row the RecursiveCTE executor popped from the
// queue — never to a live scan of the whole queue table.
type SelfReference struct {
	Attrs []sql.AttributeID
	Cell  *RowCell
	typ   sql.RelationalType
}

func NewSelfReference(attrs []sql.AttributeID, cell *RowCell, typ sql.RelationalType) *SelfReference {
	return &SelfReference{Attrs: attrs, Cell: cell, typ: typ}
}

func (s *SelfReference) RelType() sql.RelationalType { return s.typ }
func (s *SelfReference) Children() []sql.Node        { return nil }
func (s *SelfReference) Estimate() sql.Estimate      { return sql.Estimate{Cost: 1, Rows: 1} }
func (s *SelfReference) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ P uintptr }{0}) // never shared across emissions
}
func (s *SelfReference) String() string { return "SelfReference" }

// RecursiveCTE drives the fixed-point loop of spec §4.1 "Recursive CTEs":
// compile the initial term once, then repeatedly pop one row from the
// queue, evaluate RecursiveTerm with SelfReference bound to that row, and
// insert any new rows into both the result and queue ephemeral tables
// (subject to Distinct dedup), until the queue is empty.
type RecursiveCTE struct {
	Initial       sql.Node
	RecursiveTerm sql.Node
	SelfRef       *SelfReference
	Name          string
	Attrs         []sql.AttributeID
	Distinct      bool // true = UNION (dedup), false = UNION ALL
	typ           sql.RelationalType
}

func NewRecursiveCTE(name string, initial, recursiveTerm sql.Node, selfRef *SelfReference, attrs []sql.AttributeID, distinct bool) *RecursiveCTE {
	return &RecursiveCTE{
		Initial:       initial,
		RecursiveTerm: recursiveTerm,
		SelfRef:       selfRef,
		Name:          name,
		Attrs:         attrs,
		Distinct:      distinct,
		typ:           initial.RelType(),
	}
}

func (r *RecursiveCTE) Children() []sql.Node        { return []sql.Node{r.Initial, r.RecursiveTerm} }
func (r *RecursiveCTE) RelType() sql.RelationalType { return r.typ }
func (r *RecursiveCTE) Estimate() sql.Estimate {
	i := r.Initial.Estimate()
	return sql.Estimate{Cost: i.Cost * 8, Rows: i.Rows * 8}
}
func (r *RecursiveCTE) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ Name string }{r.Name}, r.Initial.Identity(), r.RecursiveTerm.Identity())
}
func (r *RecursiveCTE) String() string { return "RecursiveCTE(" + r.Name + ")" }

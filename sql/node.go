package sql

import "github.com/mitchellh/hashstructure/v2"

// Estimate carries a plan node's estimated cost and row count (spec §3
// "Plan node").
type Estimate struct {
	Cost float64
	Rows int64
}

// Expression is implemented by every scalar plan node (package
// sql/expression). It is declared here, not in package expression, so that
// both sql/plan and sql/expression can depend on the shared abstraction
// without depending on each other — only sql/planbuilder needs to import
// both concrete packages to wire them together.
type Expression interface {
	// Type is the expression's static affinity + nullability.
	Type() ScalarType
	// Children returns the expression's direct scalar operands, for
	// generic tree walks (pushdown analysis, correlation analysis).
	Children() []Expression
	// Eval computes the expression's value against the row(s) currently
	// installed in ctx.Rows. This is the "callable" the instruction
	// emitter hands to the scheduler (spec §4.2).
	Eval(ctx *Context) (Value, error)
	String() string
}

// Node is implemented by every relational plan node (package sql/plan). Its
// Children are its relational inputs.
type Node interface {
	// RelType is the node's declared output type.
	RelType() RelationalType
	// Children returns the node's direct relational inputs.
	Children() []Node
	// Estimate returns the node's estimated cost and row count, computed
	// at build time from xBestIndex results and downstream operators.
	Estimate() Estimate
	// Identity returns a value stable across repeated calls for the same
	// logical node, used by the instruction emitter to memoize emission
	// (spec §4.2 "Emission is memoized... a given plan-node identity
	// emits one instruction"). Two distinct *pointers* may share an
	// Identity only if they are genuinely interchangeable (e.g. a CTE
	// reference resolved to the same compiled subplan).
	Identity() NodeIdentity
	String() string
}

// SubqueryRunner lets a scalar expression (EXISTS, IN (subquery), scalar
// subquery) execute a relational plan node without package sql/expression
// importing package sql/program; sql/program.Emitter implements this.
type SubqueryRunner interface {
	Run(ctx *Context, node Node) (RowIter, error)
}

// NodeIdentity is an opaque, comparable token used as an emission-memo
// key. StructuralIdentity below is the standard way to produce one: a hash
// of the node's "shape" (its own fields plus its children's identities),
// matching spec §9's "identity-indexed cache, e.g. arena + interning map"
// guidance without requiring every node to hand-roll equality.
type NodeIdentity uint64

// StructuralIdentity hashes shape (anything hashstructure.Hash supports:
// structs, slices, primitives — notably NOT other Nodes/Expressions, whose
// own Identity()/pointer should be threaded in instead to avoid re-hashing
// whole subtrees) together with the identities of the node's children.
func StructuralIdentity(shape any, children ...NodeIdentity) NodeIdentity {
	h, err := hashstructure.Hash(shape, hashstructure.FormatV2, nil)
	if err != nil {
		// Hashing a plan node's own literal fields cannot fail in
		// practice (no channels/funcs in shape); if it ever does, that's
		// an internal bug in the calling node, not a runtime condition
		// to recover from.
		panic(err)
	}
	id := NodeIdentity(h)
	for _, c := range children {
		id = id*31 + NodeIdentity(c)
	}
	return id
}

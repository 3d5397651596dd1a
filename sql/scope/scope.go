// Package scope implements the nestable name resolvers the plan builder
// uses to turn unqualified and qualified identifiers into plan-node
// factories (spec §4.1 "Scopes are nestable name resolvers implementing
// 'look up symbol → plan-node factory'"). Scope chains are pure data:
// resolution never mutates a scope, mirroring the teacher's read-only
// sql.Catalog lookups.
package scope

import "github.com/Digithought/quereus-sub010/sql"

// Binding is what a scope resolves a symbol to: the attribute ID a column
// reference should carry, its static type, and which table (if any) it
// came from, for "table.*" expansion.
type Binding struct {
	Attribute sql.AttributeID
	Type      sql.ScalarType
	Table     string // "" if the binding isn't table-qualified (e.g. a projection's output column)
	Column    string
}

// Scope resolves symbols to Bindings. Implementations never mutate shared
// state on a lookup; a scope chain is built once per plan-building pass.
type Scope interface {
	// Resolve looks up an unqualified column name, returning ok=false if
	// not found. Ambiguity is not detected: when several bindings carry
	// the name, the first one found wins.
	Resolve(column string) (Binding, bool)
	// ResolveQualified looks up table.column.
	ResolveQualified(table, column string) (Binding, bool)
	// Columns lists every binding this scope directly contributes to
	// "table.*" / "*" expansion (innermost scope's own columns only; a
	// MultiScope concatenates its children's Columns).
	Columns() []Binding
}

// GlobalScope resolves against the database-wide catalog: table and view
// names become RegisteredScopes; function names resolve through a
// separate sql.FunctionRegistry (not part of Scope — functions are called,
// not selected as column sources).
type GlobalScope struct {
	Lookup func(name string) (Scope, bool) // resolves a table/view name to its column scope
}

func NewGlobalScope(lookup func(name string) (Scope, bool)) *GlobalScope {
	return &GlobalScope{Lookup: lookup}
}

func (g *GlobalScope) Resolve(column string) (Binding, bool) { return Binding{}, false }

func (g *GlobalScope) ResolveQualified(table, column string) (Binding, bool) {
	s, ok := g.Lookup(table)
	if !ok {
		return Binding{}, false
	}
	return s.Resolve(column)
}

func (g *GlobalScope) Columns() []Binding { return nil }

// RegisteredScope is an explicit, fixed set of column bindings — the scope
// a TableScan or TableFunctionCall installs for its own output columns.
type RegisteredScope struct {
	Table    string
	Columns_ []Binding
}

func NewRegisteredScope(table string, bindings []Binding) *RegisteredScope {
	for i := range bindings {
		bindings[i].Table = table
	}
	return &RegisteredScope{Table: table, Columns_: bindings}
}

func (r *RegisteredScope) Resolve(column string) (Binding, bool) {
	for _, b := range r.Columns_ {
		if b.Column == column {
			return b, true
		}
	}
	return Binding{}, false
}

func (r *RegisteredScope) ResolveQualified(table, column string) (Binding, bool) {
	if table != r.Table {
		return Binding{}, false
	}
	return r.Resolve(column)
}

func (r *RegisteredScope) Columns() []Binding { return r.Columns_ }

// AliasedScope rewrites qualified lookups under an alias (`FROM t AS x`),
// delegating unqualified resolution and Columns() straight through.
type AliasedScope struct {
	Inner Scope
	Alias string
}

func NewAliasedScope(inner Scope, alias string) *AliasedScope {
	return &AliasedScope{Inner: inner, Alias: alias}
}

func (a *AliasedScope) Resolve(column string) (Binding, bool) { return a.Inner.Resolve(column) }

func (a *AliasedScope) ResolveQualified(table, column string) (Binding, bool) {
	if table != a.Alias {
		return Binding{}, false
	}
	return a.Inner.Resolve(column)
}

func (a *AliasedScope) Columns() []Binding {
	cols := a.Inner.Columns()
	out := make([]Binding, len(cols))
	for i, b := range cols {
		b.Table = a.Alias
		out[i] = b
	}
	return out
}

// MultiScope cascades an ordered list of child scopes, first match wins
// (spec §4.1). Used to combine FROM-clause sources into one scope, and to
// stack an outer query's scope beneath a subquery's own for correlation.
type MultiScope struct {
	Children []Scope
}

func NewMultiScope(children ...Scope) *MultiScope {
	return &MultiScope{Children: children}
}

func (m *MultiScope) Resolve(column string) (Binding, bool) {
	for _, c := range m.Children {
		if b, ok := c.Resolve(column); ok {
			return b, true
		}
	}
	return Binding{}, false
}

func (m *MultiScope) ResolveQualified(table, column string) (Binding, bool) {
	for _, c := range m.Children {
		if b, ok := c.ResolveQualified(table, column); ok {
			return b, true
		}
	}
	return Binding{}, false
}

func (m *MultiScope) Columns() []Binding {
	var out []Binding
	for _, c := range m.Children {
		out = append(out, c.Columns()...)
	}
	return out
}

// Package quereus is the embeddable entry point spec §6 describes: an
// Engine wires a schema catalog, a virtual-table module registry, a
// function registry and the plan emitter together, and hands out Sessions
// that prepare SQL text into Statements carrying the prepare/bind/run/
// get/all/iterateRows lifecycle.
//
// Grounded on the teacher's engine.go (sqle.Engine/sqle.Config/sqle.New):
// the same "construct once, open many sessions/statements against it"
// shape, generalized from a MySQL-dialect analyzer pipeline to this
// engine's planbuilder+program.Emitter pipeline, and from a
// vitess-sqlparser-bound Engine to one that takes its SQL parser as an
// injected dependency (spec §4.1.1 — parsing is out of scope here).
package quereus

import (
	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/catalog"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/program"
	"github.com/Digithought/quereus-sub010/vtab"
)

// Parser turns SQL text into a batch of statements (spec §5 "Plans built
// per statement, cached by statement object, invalidated when the
// statement advances to the next AST in a batch"). Real SQL parsing is
// out of scope for this repository; whatever embeds this engine supplies
// one. package explain needs only a single-statement variant, adapted
// from this one in explainParserAdapter (tablefunctions.go).
type Parser interface {
	Parse(sqlText string) ([]ast.Statement, error)
}

// Config holds Engine-wide settings (spec §6, mirroring the teacher's
// sqle.Config).
type Config struct {
	// ReadOnly rejects any statement that would mutate a table or the
	// catalog itself.
	ReadOnly bool
}

// Engine owns the catalog, module registry, function registry and plan
// emitter for one embedded database instance. It is safe for concurrent
// use by multiple Sessions; a Session itself is not (spec §5 "Statement
// objects... not thread-safe").
type Engine struct {
	parser    Parser
	modules   *vtab.Registry
	functions *sql.FunctionRegistry
	catalog   *catalog.Catalog
	emitter   *program.Emitter
	readOnly  bool
}

// New constructs an Engine against an already-populated module registry
// (register every vtab.Module the embedder needs before calling this).
func New(parser Parser, modules *vtab.Registry, cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	functions := sql.NewFunctionRegistry()
	return &Engine{
		parser:    parser,
		modules:   modules,
		functions: functions,
		catalog:   catalog.NewCatalog(modules, functions),
		emitter:   program.NewEmitter(),
		readOnly:  cfg.ReadOnly,
	}
}

// Catalog exposes the schema catalog so an embedder can register
// out-of-band tables/functions before opening a Session.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Functions exposes the function registry for registering scalar/
// aggregate function bodies (spec §1 — built-in function bodies are an
// external collaborator, not part of the engine core).
func (e *Engine) Functions() *sql.FunctionRegistry { return e.functions }

// NewSession opens one logical connection: a persistent sql.Context whose
// Connections/transaction state carries across every statement the
// session prepares, the way BEGIN/COMMIT spanning multiple statements
// requires (spec §5 "Transaction discipline").
func (e *Engine) NewSession() *Session {
	return newSession(e)
}

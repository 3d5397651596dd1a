package sql

import (
	"context"

	"github.com/sirupsen/logrus"
)

// TxConnection is the transactional surface a virtual-table module's
// per-session connection exposes (spec §4.5). It is declared here, not in
// the vtab package, purely to let sql.Context hold one without an import
// cycle — package vtab's Connection interface embeds it, and each module's
// concrete connection type (e.g. package memory's) implements it.
type TxConnection interface {
	// ID identifies this connection uniquely within the process, so a
	// DeferredQueue can resolve which connection a queued entry belongs to
	// by exact match rather than only by table name (spec §4.4.1).
	ID() ConnectionID
	Begin(ctx *Context) error
	Commit(ctx *Context) error
	Rollback(ctx *Context) error
	CreateSavepoint(ctx *Context, index int) error
	ReleaseSavepoint(ctx *Context, index int) error
	RollbackToSavepoint(ctx *Context, index int) error
}

// DeferredEntry is one queued deferred-constraint evaluation (spec §4.4).
type DeferredEntry struct {
	ConstraintName string
	ConnectionID   ConnectionID
	TableName      string
	Row            FlatRow
	Descriptor     RowDescriptor
	Evaluate       func(ctx *Context) (Value, error)
}

// DeferredQueue is the per-database deferred-constraint queue surface
// (spec §4.4). Declared as an interface here so sql.Context can reference it
// without importing package sql/constraints; sql/constraints.Queue
// implements it.
type DeferredQueue interface {
	Enqueue(entry DeferredEntry)
	BeginLayer()
	RollbackLayer()
	ReleaseLayer()
	RunDeferredRows(ctx *Context) error
}

// Tracer receives scheduler/constraint-engine trace events when a Context
// has tracing enabled (spec §4.3 "optional tracer/metrics").
type Tracer interface {
	Trace(ctx *Context, event string, detail string)
}

// Context is the runtime context supplied to every instruction run (spec
// §4.3 "Runtime context"). It is confined to one executing statement and
// must never be shared across concurrent statements.
type Context struct {
	goCtx context.Context

	Logger *logrus.Entry

	// StatementID identifies the owning prepared statement, for the `busy`
	// re-entrancy guard (spec §5 "Statement objects").
	StatementID uint64

	CurrentDatabase string

	// Params holds bound parameter values, by position (1-based) and by
	// name.
	ParamsByIndex map[int]Value
	ParamsByName  map[string]Value

	Rows *RowContext

	// Connections maps a table's qualified name to the TxConnection the
	// current statement is using against it (spec §4.5 "Connection
	// state" — one connection per consumer session per table).
	Connections map[string]TxConnection

	// Materialized caches the rows a Materialize or RecursiveCTE plan node
	// has produced, keyed by that node's own Identity, so every
	// EphemeralScan referencing it within the same statement execution
	// reads the same already-computed rows instead of re-running the
	// subtree (spec §4.2 "Emission is memoized... references share it").
	Materialized map[NodeIdentity][]Row

	Deferred DeferredQueue

	Tracer         Tracer
	MetricsEnabled bool
}

func NewContext(goCtx context.Context, logger *logrus.Entry) *Context {
	if goCtx == nil {
		goCtx = context.Background()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Context{
		goCtx:         goCtx,
		Logger:        logger,
		ParamsByIndex: make(map[int]Value),
		ParamsByName:  make(map[string]Value),
		Rows:          NewRowContext(),
		Connections:   make(map[string]TxConnection),
		Materialized:  make(map[NodeIdentity][]Row),
	}
}

func (c *Context) GoContext() context.Context { return c.goCtx }

func (c *Context) WithGoContext(goCtx context.Context) *Context {
	clone := *c
	clone.goCtx = goCtx
	return &clone
}

func (c *Context) trace(event, detail string) {
	if c.Tracer != nil {
		c.Tracer.Trace(c, event, detail)
	}
}

// Trace is the public entry point components use to emit a trace event; it
// is a no-op when no tracer is attached, so call sites never need to check.
func (c *Context) Trace(event, detail string) { c.trace(event, detail) }

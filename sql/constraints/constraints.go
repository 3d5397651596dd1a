// Package constraints implements the constraint engine (spec.md §4.4):
// immediate NOT NULL and CHECK evaluation inline in the mutation pipeline,
// PRIMARY KEY delegated to the virtual-table module, and a savepoint-aware
// deferred queue for CHECKs marked deferred.
package constraints

import (
	"github.com/Digithought/quereus-sub010/sql"
)

// Engine runs a table's NOT NULL and CHECK constraints against one flat
// (OLD+NEW) row, scoped to the row operation being performed (spec §4.4
// "Scope"). PRIMARY KEY violations are not checked here — they are raised
// by the virtual-table module's Connection.Update, which owns the index
// structures needed to detect them (spec §4.5).
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// CheckImmediate validates every non-deferred constraint on schema against
// new (the post-mutation row, schema-column order) for the given op. A
// failing NOT NULL or CHECK aborts the row (spec §7 "Constraint").
func (e *Engine) CheckImmediate(ctx *sql.Context, schema *sql.TableSchema, op sql.RowOp, flat sql.FlatRow) error {
	newRow := flat.New()
	if op == sql.RowOpDelete {
		// DELETE has no NEW row to validate.
		return nil
	}
	for i, col := range schema.Columns {
		if !col.Nullable && newRow[i].IsNull() {
			return sql.ErrNotNullViolation.New(schema.Name, col.Name)
		}
	}
	for _, chk := range schema.Checks {
		if chk.Ops&op == 0 || chk.Deferred {
			continue
		}
		if err := e.evalCheck(ctx, schema, chk, flat); err != nil {
			return err
		}
	}
	return nil
}

// Deferred collects this schema's deferred CHECK constraints into entries
// ready for a Queue, to be evaluated at commit instead of inline (spec
// §4.4). The caller supplies the flat row to capture (it may be mutated
// further by later statements in the same transaction, so Deferred clones
// it). The descriptor every entry carries maps the schema's declared
// columns onto the NEW half of the cloned flat row, the same slice a
// Queue installs via sql.WithContext when it runs the entry later.
func (e *Engine) Deferred(schema *sql.TableSchema, connID sql.ConnectionID, op sql.RowOp, flat sql.FlatRow) []sql.DeferredEntry {
	flat = flat.Clone()
	descriptor := make(sql.RowDescriptor, len(schema.Columns))
	for i := range schema.Columns {
		descriptor[sql.AttributeID(i+1)] = flat.Width + i
	}
	var out []sql.DeferredEntry
	for _, chk := range schema.Checks {
		if !chk.Deferred || chk.Ops&op == 0 {
			continue
		}
		chk := chk
		out = append(out, sql.DeferredEntry{
			ConstraintName: chk.Name,
			ConnectionID:   connID,
			TableName:      schema.Name,
			Row:            flat,
			Descriptor:     descriptor,
			Evaluate: func(ctx *sql.Context) (sql.Value, error) {
				return chk.Expr.Eval(ctx)
			},
		})
	}
	return out
}

// evalCheck installs a single-row descriptor over newRow — CHECK
// expressions are compiled against the table's own column attributes
// (planbuilder's columnScope, attribute IDs 1..N in declaration order),
// never the OLD half of a flat row, matching ordinary SQL CHECK semantics.
func (e *Engine) evalCheck(ctx *sql.Context, schema *sql.TableSchema, chk sql.CheckConstraint, flat sql.FlatRow) error {
	newRow := flat.New()
	descriptor := make(sql.RowDescriptor, len(newRow))
	for i := range newRow {
		descriptor[sql.AttributeID(i+1)] = i
	}
	var failed bool
	err := sql.WithContext(ctx.Rows, descriptor, newRow, func() error {
		v, err := chk.Expr.Eval(ctx)
		if err != nil {
			return err
		}
		failed = v.IsConstraintFailure()
		return nil
	})
	if err != nil {
		return err
	}
	if failed {
		return sql.ErrCheckViolation.New(chk.Name)
	}
	return nil
}

package sql

import "gopkg.in/src-d/go-errors.v1"

// Error kinds observable at the API boundary (spec §7). Every error the
// engine core raises deliberately is one of these kinds; anything else that
// escapes is, by definition, an Internal bug.
var (
	// ErrMisuse signals an invalid call sequence against the statement API:
	// bind after finalize, advancing a busy statement, an out-of-range
	// column index. Never retried by the caller.
	ErrMisuse = errors.NewKind("misuse: %s")

	// ErrParse signals a failure building a plan from an AST statement.
	ErrParse = errors.NewKind("parse/plan error: %s")

	// ErrConstraint signals a NOT NULL, CHECK, or PRIMARY KEY violation.
	ErrConstraint = errors.NewKind("constraint failed: %s")

	// ErrInternal signals an invariant violation in the engine itself.
	ErrInternal = errors.NewKind("internal error: %s")

	// ErrUnsupported signals a recognized but not-yet-implemented feature.
	ErrUnsupported = errors.NewKind("unsupported: %s")
)

// Narrower sentinels built on the five kinds above, raised by specific
// components; kept distinct so callers can match on exactly what failed.
var (
	ErrStatementBusy         = errors.NewKind("statement is busy: %s")
	ErrStatementFinalized    = errors.NewKind("statement already finalized")
	ErrNoMoreStatements      = errors.NewKind("no further statement in batch")
	ErrColumnIndexOutOfRange = errors.NewKind("column index %d out of range")
	ErrUnknownParameter      = errors.NewKind("unknown parameter %q")

	ErrNotNullViolation = errors.NewKind("NOT NULL constraint failed: %s.%s")
	ErrCheckViolation   = errors.NewKind("CHECK constraint failed: %s")
	ErrPrimaryKeyExists = errors.NewKind("UNIQUE constraint failed: primary key %v already exists in %s")
	ErrMixedAggregate   = errors.NewKind("cannot mix aggregate and non-aggregate expressions without GROUP BY")
	ErrJoinUnsupported  = errors.NewKind("join strategy %s is not supported")
	ErrAmbiguousColumn  = errors.NewKind("ambiguous column reference %q")
	ErrUnknownColumn    = errors.NewKind("unknown column %q")
	ErrUnknownTable     = errors.NewKind("unknown table %q")
	ErrUnknownFunction  = errors.NewKind("unknown function %q")
	ErrUnknownModule    = errors.NewKind("unknown virtual table module %q")
	ErrTableExists      = errors.NewKind("table %q already exists")
	ErrViewExists       = errors.NewKind("view %q already exists")
	ErrIndexExists      = errors.NewKind("index %q already exists")
	ErrReadOnly         = errors.NewKind("database is read-only")
	ErrTableIsReadOnly  = errors.NewKind("table %q is read-only")
)

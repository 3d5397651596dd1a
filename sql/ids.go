package sql

import (
	"sync/atomic"

	uuid "github.com/satori/go.uuid"
)

// ConnectionID identifies one virtual-table consumer session (spec §3
// "Connection state", §4.5).
type ConnectionID string

// NewConnectionID mints a process-unique connection handle. Unlike the
// monotonic AttributeID counter, connection identity need not be ordered —
// a random UUID is the natural fit, matching the teacher's
// `github.com/satori/go.uuid` dependency.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewV4().String())
}

// LayerID identifies one storage layer (BaseLayer or TransactionLayer) for
// diagnostics and the explain/introspection surface (spec §4.7).
type LayerID string

func NewLayerID() LayerID {
	return LayerID(uuid.NewV4().String())
}

// layerSeq gives layers produced within a single process run a secondary,
// monotonic ordinal alongside their UUID — useful for stable sort order in
// trace output without depending on wall-clock time.
var layerSeq atomic.Uint64

func NextLayerOrdinal() uint64 {
	return layerSeq.Add(1)
}

// statementSeq mints Context.StatementID values (spec §5 "Statement
// objects... busy guard rejects re-entry"). Monotonic rather than a UUID
// since nothing orders statements by anything but creation sequence.
var statementSeq atomic.Uint64

func NewStatementID() uint64 {
	return statementSeq.Add(1)
}

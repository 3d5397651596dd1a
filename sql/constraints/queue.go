package constraints

import "github.com/Digithought/quereus-sub010/sql"

// Queue is the per-database deferred-constraint queue (spec §4.4), layered
// to match the enclosing transaction's savepoint stack: BeginLayer opens a
// new savepoint's pending entries, RollbackLayer discards them, and
// ReleaseLayer folds them into the parent layer, and RunDeferredRows at
// commit runs everything still pending in every layer.
type Queue struct {
	layers [][]sql.DeferredEntry
}

func NewQueue() *Queue {
	return &Queue{layers: [][]sql.DeferredEntry{nil}}
}

func (q *Queue) Enqueue(entry sql.DeferredEntry) {
	top := len(q.layers) - 1
	q.layers[top] = append(q.layers[top], entry)
}

func (q *Queue) BeginLayer() {
	q.layers = append(q.layers, nil)
}

func (q *Queue) RollbackLayer() {
	if len(q.layers) == 1 {
		q.layers[0] = nil
		return
	}
	q.layers = q.layers[:len(q.layers)-1]
}

// ReleaseLayer folds the top layer's entries into its parent, matching a
// RELEASE SAVEPOINT that keeps the deferred work pending on the enclosing
// scope rather than discarding or running it.
func (q *Queue) ReleaseLayer() {
	if len(q.layers) == 1 {
		return
	}
	top := q.layers[len(q.layers)-1]
	q.layers = q.layers[:len(q.layers)-1]
	parent := len(q.layers) - 1
	q.layers[parent] = append(q.layers[parent], top...)
}

// RunDeferredRows evaluates every still-pending entry across all layers, in
// enqueue order, resolving each entry's connection by id first and falling
// back to table name when no attached connection carries that id (spec §9
// "active-connection lookup
// heuristic"). A failing entry aborts the commit (spec §7 "Constraint").
// Entries run and pending state is cleared regardless of where in the
// layer stack they came from — a commit always runs the whole queue.
func (q *Queue) RunDeferredRows(ctx *sql.Context) error {
	for _, layer := range q.layers {
		for _, entry := range layer {
			if err := runEntry(ctx, entry); err != nil {
				return err
			}
		}
	}
	q.layers = [][]sql.DeferredEntry{nil}
	return nil
}

// resolveConnection finds the sql.TxConnection backing entry, by exact
// connection ID first and falling back to a table-name match only when no
// connection in ctx carries that ID (spec §4.4.1). A commit can only run
// entries whose owning connection is still attached to ctx; one that
// resolves to neither means the connection that queued it was never
// committed through this context, so the entry is stale.
func resolveConnection(ctx *sql.Context, entry sql.DeferredEntry) (sql.TxConnection, bool) {
	for _, c := range ctx.Connections {
		if c.ID() == entry.ConnectionID {
			return c, true
		}
	}
	if c, ok := ctx.Connections[entry.TableName]; ok {
		return c, true
	}
	return nil, false
}

func runEntry(ctx *sql.Context, entry sql.DeferredEntry) error {
	if _, ok := resolveConnection(ctx, entry); !ok {
		return sql.ErrMisuse.New("deferred constraint " + entry.ConstraintName + " has no active connection for table " + entry.TableName)
	}
	var failed bool
	err := sql.WithContext(ctx.Rows, entry.Descriptor, entry.Row.Row, func() error {
		v, err := entry.Evaluate(ctx)
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
		return sql.ErrCheckViolation.New(entry.ConstraintName)
	}
	return nil
}

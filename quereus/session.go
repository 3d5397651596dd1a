package quereus

import (
	"github.com/pkg/errors"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/constraints"
)

// Session is one logical connection to an Engine: a persistent
// sql.Context whose Connections map and transaction flag carry across
// every Statement it prepares, exactly as BEGIN/COMMIT spanning multiple
// statements requires (spec §5 "Transaction discipline"). A Session is
// not safe for concurrent use by multiple goroutines — open one per
// consumer session, the way a vtab.Table opens one Connection per
// consumer (spec §4.5).
type Session struct {
	engine *Engine
	ctx    *sql.Context

	inTransaction bool
	// savepoints maps a SAVEPOINT name to the per-connection index passed
	// to sql.TxConnection.CreateSavepoint. Only connections already open
	// at the moment SAVEPOINT runs are snapshotted — a table first
	// touched after the savepoint was created has nothing to roll back to
	// and is simply outside its scope, a known limitation recorded in
	// DESIGN.md.
	savepoints    map[string]int
	nextSavepoint int

	// deferredOpen names the SAVEPOINTs that currently have a layer open on
	// ctx.Deferred, innermost last, mirroring the queue's own stack. Only
	// the common case of strictly nested SAVEPOINT/RELEASE/ROLLBACK TO is
	// tracked precisely; releasing or rolling back to a savepoint that
	// isn't the innermost open one leaves the deferred queue's layering
	// untouched, a simplification recorded in DESIGN.md.
	deferredOpen []string
}

func newSession(e *Engine) *Session {
	ctx := sql.NewContext(nil, nil)
	ctx.Deferred = constraints.NewQueue()
	return &Session{
		engine:     e,
		ctx:        ctx,
		savepoints: make(map[string]int),
	}
}

// Context exposes the session's runtime sql.Context, e.g. for an embedder
// that wants to attach a sql.Tracer or change CurrentDatabase.
func (s *Session) Context() *sql.Context { return s.ctx }

// Prepare parses sqlText into a batch and returns a Statement positioned
// at the first one (spec §6 "prepare(sql) → statement").
func (s *Session) Prepare(sqlText string) (*Statement, error) {
	batch, err := s.engine.parser.Parse(sqlText)
	if err != nil {
		return nil, sql.ErrParse.New(err.Error())
	}
	return s.PrepareStatements(batch)
}

// PrepareStatements prepares an already-parsed AST batch directly,
// bypassing the injected Parser (spec §5 "Prepares a SQL text or AST
// batch").
func (s *Session) PrepareStatements(batch []ast.Statement) (*Statement, error) {
	if len(batch) == 0 {
		return nil, sql.ErrMisuse.New("empty statement batch")
	}
	stmt := &Statement{
		session:       s,
		batch:         batch,
		id:            sql.NewStatementID(),
		paramsByIndex: make(map[int]sql.Value),
		paramsByName:  make(map[string]sql.Value),
	}
	if err := stmt.build(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// touchedConnections returns every sql.TxConnection this session has
// opened so far (one per table touched across its statements).
func (s *Session) touchedConnections() []sql.TxConnection {
	out := make([]sql.TxConnection, 0, len(s.ctx.Connections))
	for _, c := range s.ctx.Connections {
		out = append(out, c)
	}
	return out
}

// commitAll runs every constraint deferred during the transaction (spec
// §4.4: "invoked at transaction commit before the storage module's commit
// finalizes") and only then commits each touched connection, so a failing
// deferred CHECK aborts the whole commit with nothing yet written back to
// the table's committed chain.
func (s *Session) commitAll() error {
	if err := s.ctx.Deferred.RunDeferredRows(s.ctx); err != nil {
		return err
	}
	for _, c := range s.touchedConnections() {
		if err := c.Commit(s.ctx); err != nil {
			return err
		}
	}
	s.ctx.Connections = make(map[string]sql.TxConnection)
	s.deferredOpen = nil
	return nil
}

func (s *Session) rollbackAll() error {
	var first error
	for _, c := range s.touchedConnections() {
		if err := c.Rollback(s.ctx); err != nil && first == nil {
			first = err
		}
	}
	s.ctx.Connections = make(map[string]sql.TxConnection)
	// Discard every layer the deferred queue has open (the base layer plus
	// one per still-open SAVEPOINT), so a check queued by this (now
	// abandoned) transaction never runs against a later, unrelated commit.
	for i := 0; i <= len(s.deferredOpen); i++ {
		s.ctx.Deferred.RollbackLayer()
	}
	s.deferredOpen = nil
	return first
}

// endOfStatement runs after a non-transaction-control statement finishes:
// in autocommit mode (no explicit BEGIN in effect) it commits or rolls
// back every connection the statement touched; inside an explicit
// transaction it leaves them pending for the next statement. Mirrors the
// teacher's clearAutocommitTransaction/beginTransaction pairing in
// engine.go: if the statement itself already failed, a failure to roll
// back cleanly is folded into that original error rather than masking it.
func (s *Session) endOfStatement(execErr error) error {
	if s.inTransaction {
		return execErr
	}
	if execErr != nil {
		if rbErr := s.rollbackAll(); rbErr != nil {
			return errors.Wrap(execErr, "unable to roll back autocommit transaction: "+rbErr.Error())
		}
		return execErr
	}
	return s.commitAll()
}

func (s *Session) begin() error {
	if s.inTransaction {
		return sql.ErrMisuse.New("BEGIN while a transaction is already active")
	}
	s.inTransaction = true
	return nil
}

func (s *Session) commit() error {
	s.inTransaction = false
	s.savepoints = make(map[string]int)
	return s.commitAll()
}

func (s *Session) rollback() error {
	s.inTransaction = false
	s.savepoints = make(map[string]int)
	return s.rollbackAll()
}

func (s *Session) savepoint(name string) error {
	idx := s.nextSavepoint
	s.nextSavepoint++
	s.savepoints[name] = idx
	for _, c := range s.touchedConnections() {
		if err := c.CreateSavepoint(s.ctx, idx); err != nil {
			return err
		}
	}
	s.deferredOpen = append(s.deferredOpen, name)
	s.ctx.Deferred.BeginLayer()
	return nil
}

func (s *Session) release(name string) error {
	idx, ok := s.savepoints[name]
	if !ok {
		return sql.ErrMisuse.New("no such savepoint: " + name)
	}
	for _, c := range s.touchedConnections() {
		if err := c.ReleaseSavepoint(s.ctx, idx); err != nil {
			return err
		}
	}
	delete(s.savepoints, name)
	if len(s.deferredOpen) > 0 && s.deferredOpen[len(s.deferredOpen)-1] == name {
		s.ctx.Deferred.ReleaseLayer()
		s.deferredOpen = s.deferredOpen[:len(s.deferredOpen)-1]
	}
	return nil
}

func (s *Session) rollbackTo(name string) error {
	idx, ok := s.savepoints[name]
	if !ok {
		return sql.ErrMisuse.New("no such savepoint: " + name)
	}
	for _, c := range s.touchedConnections() {
		if err := c.RollbackToSavepoint(s.ctx, idx); err != nil {
			return err
		}
	}
	for n, i := range s.savepoints {
		if i >= idx && n != name {
			delete(s.savepoints, n)
		}
	}
	if len(s.deferredOpen) > 0 && s.deferredOpen[len(s.deferredOpen)-1] == name {
		// The named savepoint stays open (ROLLBACK TO keeps it, unlike
		// RELEASE); only its own pending deferred work and anything
		// queued after it are discarded, then a fresh layer replaces it
		// so the session can keep queuing at the same depth.
		s.ctx.Deferred.RollbackLayer()
		s.ctx.Deferred.BeginLayer()
	}
	return nil
}

package quereus

import (
	"io"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/catalog"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/sql/planbuilder"
	"github.com/Digithought/quereus-sub010/sql/scope"
)

// txKind identifies which transaction-control statement a Statement
// wraps, or txNone for a regular relational/DDL statement (spec §5
// "Transaction discipline"; these never produce a planbuilder.Plan).
type txKind int

const (
	txNone txKind = iota
	txBegin
	txCommit
	txRollback
	txSavepoint
	txRelease
)

// Statement is one prepared statement positioned within a batch (spec §6
// "Statement lifecycle API"). It is not safe for concurrent use; the busy
// guard rejects re-entrant calls while a row iterator from a prior
// run/get/all/iterateRows call is still open.
type Statement struct {
	session *Session
	batch   []ast.Statement
	index   int
	id      uint64

	plan  *planbuilder.Plan
	tx    txKind
	txArg string // savepoint name for txSavepoint/txRelease/txRollback-to

	paramsByIndex map[int]sql.Value
	paramsByName  map[string]sql.Value
	paramIndexes  []int
	paramNames    []string

	iter      sql.RowIter
	busy      bool
	finalized bool
}

// build plans (or recognizes as transaction control) the statement
// currently at s.index, replacing any previously built plan — called by
// PrepareStatements and by NextStatement (spec §5 "invalidated when the
// statement advances to the next AST in a batch").
func (s *Statement) build() error {
	s.plan = nil
	s.tx = txNone
	s.txArg = ""
	s.paramIndexes = nil
	s.paramNames = nil

	stmt := s.batch[s.index]
	switch t := stmt.(type) {
	case *ast.BeginStatement:
		s.tx = txBegin
		return nil
	case *ast.CommitStatement:
		s.tx = txCommit
		return nil
	case *ast.RollbackStatement:
		s.tx = txRollback
		s.txArg = t.To
		return nil
	case *ast.SavepointStatement:
		s.tx = txSavepoint
		s.txArg = t.Name
		return nil
	case *ast.ReleaseStatement:
		s.tx = txRelease
		s.txArg = t.Name
		return nil
	}

	if sel, ok := stmt.(*ast.SelectStatement); ok {
		p, handled, err := s.session.tryBuildExplainTableFunction(sel)
		if err != nil {
			return err
		}
		if handled {
			s.plan = p
			return nil
		}
	}

	b := planbuilder.NewBuilder(s.session.engine.catalog, sql.NewAttributeAllocator(), s.session.engine.emitter)
	p, err := b.Build(stmt, scope.NewMultiScope())
	if err != nil {
		return err
	}
	if s.session.engine.readOnly && isMutating(p) {
		return sql.ErrReadOnly.New()
	}
	s.plan = p
	if p.Node != nil {
		collectBindVars(p.Node, &s.paramIndexes, &s.paramNames)
	}
	return nil
}

// isMutating reports whether p would write to a table or the catalog.
func isMutating(p *planbuilder.Plan) bool {
	if p.DDL != nil {
		return true
	}
	switch p.Node.(type) {
	case *plan.Insert, *plan.Update, *plan.Delete:
		return true
	}
	return false
}

// collectBindVars walks node's relational tree plus every scalar
// expression it reaches, recording each *expression.BindVar's position or
// name the first time it is seen, in encounter order (spec §6
// "getParameterCount/getParameterName/getParameterIndex").
func collectBindVars(node sql.Node, indexes *[]int, names *[]string) {
	seenIdx := make(map[int]bool)
	seenName := make(map[string]bool)
	for _, i := range *indexes {
		seenIdx[i] = true
	}
	for _, n := range *names {
		seenName[n] = true
	}

	var walkExpr func(e sql.Expression)
	walkExpr = func(e sql.Expression) {
		if bv, ok := e.(*expression.BindVar); ok {
			if bv.Name != "" {
				if !seenName[bv.Name] {
					seenName[bv.Name] = true
					*names = append(*names, bv.Name)
				}
			} else if !seenIdx[bv.Index] {
				seenIdx[bv.Index] = true
				*indexes = append(*indexes, bv.Index)
			}
		}
		for _, c := range e.Children() {
			walkExpr(c)
		}
	}
	var walkNode func(n sql.Node)
	walkNode = func(n sql.Node) {
		for _, expr := range plan.ScalarExpressionsOf(n) {
			if expr != nil {
				walkExpr(expr)
			}
		}
		for _, c := range n.Children() {
			walkNode(c)
		}
	}
	walkNode(node)
}

func (s *Statement) checkUsable() error {
	if s.finalized {
		return sql.ErrStatementFinalized.New()
	}
	if s.busy {
		return sql.ErrStatementBusy.New("statement has an open row iterator")
	}
	return nil
}

// Bind sets the value of a positional (1-based) parameter, coercing v
// with github.com/spf13/cast the way spec §6's "statement.bind(k,v)"
// accepts native Go values rather than requiring a pre-built sql.Value.
func (s *Statement) Bind(index int, v interface{}) error {
	if err := s.checkUsable(); err != nil {
		return err
	}
	val, err := valueFromAny(v)
	if err != nil {
		return err
	}
	s.paramsByIndex[index] = val
	return nil
}

// BindName sets the value of a named (:name/@name) parameter.
func (s *Statement) BindName(name string, v interface{}) error {
	if err := s.checkUsable(); err != nil {
		return err
	}
	val, err := valueFromAny(v)
	if err != nil {
		return err
	}
	s.paramsByName[name] = val
	return nil
}

// BindAll sets every named parameter in params at once (spec §6
// "bindAll({…})").
func (s *Statement) BindAll(params map[string]interface{}) error {
	if err := s.checkUsable(); err != nil {
		return err
	}
	for name, v := range params {
		val, err := valueFromAny(v)
		if err != nil {
			return err
		}
		s.paramsByName[name] = val
	}
	return nil
}

func (s *Statement) ClearBindings() {
	s.paramsByIndex = make(map[int]sql.Value)
	s.paramsByName = make(map[string]sql.Value)
}

// Reset rewinds the statement so it can be re-run without re-planning.
func (s *Statement) Reset() error {
	if s.finalized {
		return sql.ErrStatementFinalized.New()
	}
	if s.iter != nil {
		s.iter.Close(s.session.ctx)
		s.iter = nil
	}
	s.busy = false
	return nil
}

func (s *Statement) Finalize() error {
	if err := s.Reset(); err != nil {
		return err
	}
	s.finalized = true
	return nil
}

// NextStatement advances to the next AST in the batch, re-planning it
// (spec §6 "statement.nextStatement() — advance within a batch"). Returns
// false once the batch is exhausted.
func (s *Statement) NextStatement() (bool, error) {
	if err := s.checkUsable(); err != nil {
		return false, err
	}
	if s.index+1 >= len(s.batch) {
		return false, sql.ErrNoMoreStatements.New()
	}
	s.index++
	s.ClearBindings()
	if err := s.build(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Statement) ColumnNames() []string {
	if s.plan == nil {
		return nil
	}
	return s.plan.ColumnNames
}

func (s *Statement) ColumnType(i int) (sql.Affinity, error) {
	if s.plan == nil || s.plan.Node == nil {
		return 0, sql.ErrMisuse.New("statement has no result columns")
	}
	cols := s.plan.Node.RelType().Columns
	if i < 0 || i >= len(cols) {
		return 0, sql.ErrColumnIndexOutOfRange.New(i)
	}
	return cols[i].Affinity, nil
}

func (s *Statement) ParameterCount() int { return len(s.paramIndexes) + len(s.paramNames) }

func (s *Statement) ParameterName(i int) (string, error) {
	if i < 0 || i >= len(s.paramNames) {
		return "", sql.ErrColumnIndexOutOfRange.New(i)
	}
	return s.paramNames[i], nil
}

func (s *Statement) ParameterIndex(name string) (int, error) {
	for i, n := range s.paramNames {
		if n == name {
			return i, nil
		}
	}
	return 0, sql.ErrUnknownParameter.New(name)
}

// ctxForRun installs this statement's bound parameters onto the session's
// shared runtime context right before execution (spec §4.3 "Runtime
// context" carries ParamsByIndex/ParamsByName).
func (s *Statement) ctxForRun() *sql.Context {
	ctx := s.session.ctx
	ctx.StatementID = s.id
	ctx.ParamsByIndex = s.paramsByIndex
	ctx.ParamsByName = s.paramsByName
	return ctx
}

func (s *Statement) open() (sql.RowIter, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}
	if s.tx != txNone {
		return nil, sql.ErrMisuse.New("transaction-control statements have no row iterator; call Run")
	}
	if s.plan.Node == nil {
		return nil, sql.ErrMisuse.New("DDL statements have no row iterator; call Run")
	}
	iter, err := s.session.engine.emitter.Open(s.ctxForRun(), s.plan.Node)
	if err != nil {
		return nil, err
	}
	s.iter = iter
	s.busy = true
	return iter, nil
}

// runTxControl executes a transaction-control statement directly against
// the session (spec §5 "Transaction discipline").
func (s *Statement) runTxControl() error {
	switch s.tx {
	case txBegin:
		return s.session.begin()
	case txCommit:
		return s.session.commit()
	case txRollback:
		if s.txArg != "" {
			return s.session.rollbackTo(s.txArg)
		}
		return s.session.rollback()
	case txSavepoint:
		return s.session.savepoint(s.txArg)
	case txRelease:
		return s.session.release(s.txArg)
	}
	return sql.ErrInternal.New("unrecognized transaction-control statement")
}

// Run consumes the statement without yielding rows (spec §6
// "statement.run(params?) — consume without yielding rows"): for DDL it
// applies the change to the catalog, for transaction control it drives
// the session, and otherwise it drains any result rows purely for their
// side effects (INSERT/UPDATE/DELETE, or a SELECT run only to force
// evaluation).
func (s *Statement) Run() error {
	if err := s.checkUsable(); err != nil {
		return err
	}
	if s.tx != txNone {
		return s.runTxControl()
	}
	if s.plan.DDL != nil {
		return s.session.engine.catalog.Apply(s.ctxForRun(), s.plan.DDL)
	}
	iter, err := s.open()
	if err != nil {
		return err
	}
	_, drainErr := sql.RowIterToRows(s.ctxForRun(), iter)
	s.busy = false
	s.iter = nil
	return s.session.endOfStatement(drainErr)
}

// rowToMap converts one result row into the {column: value} shape spec §6
// describes for get()/all().
func (s *Statement) rowToMap(row sql.Row) map[string]sql.Value {
	names := s.ColumnNames()
	out := make(map[string]sql.Value, len(row))
	for i, v := range row {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		out[name] = v
	}
	return out
}

// Get returns the first result row as {column: value}, or (nil, nil) if
// the result is empty (spec §6 "statement.get(params?) — first row").
func (s *Statement) Get() (map[string]sql.Value, error) {
	iter, err := s.open()
	if err != nil {
		return nil, err
	}
	row, nextErr := iter.Next(s.ctxForRun())
	closeErr := iter.Close(s.ctxForRun())
	s.busy = false
	s.iter = nil
	if nextErr == io.EOF {
		return nil, s.session.endOfStatement(closeErr)
	}
	if nextErr != nil {
		s.session.endOfStatement(nextErr)
		return nil, nextErr
	}
	if err := s.session.endOfStatement(closeErr); err != nil {
		return nil, err
	}
	return s.rowToMap(row), nil
}

// All drains every result row as a slice of {column: value} maps (spec §6
// "statement.all(params?)" — this engine has no async generators, so the
// "async iterable" becomes an already-drained slice; IterateRows below is
// the pull-based equivalent for callers who want to stream).
func (s *Statement) All() ([]map[string]sql.Value, error) {
	iter, err := s.open()
	if err != nil {
		return nil, err
	}
	rows, drainErr := sql.RowIterToRows(s.ctxForRun(), iter)
	s.busy = false
	s.iter = nil
	if err := s.session.endOfStatement(drainErr); err != nil {
		return nil, err
	}
	out := make([]map[string]sql.Value, len(rows))
	for i, row := range rows {
		out[i] = s.rowToMap(row)
	}
	return out, nil
}

// IterateRows opens the statement's raw sql.RowIter for the caller to
// pull directly (spec §6 "statement.iterateRows(...) — async iterable of
// raw rows"), the streaming counterpart to All. The caller must fully
// drain or Close the iterator, which clears the statement's busy guard
// and runs the statement's commit-or-rollback exactly once.
func (s *Statement) IterateRows() (sql.RowIter, error) {
	iter, err := s.open()
	if err != nil {
		return nil, err
	}
	return &statementIter{stmt: s, inner: iter}, nil
}

// statementIter wraps the emitted RowIter so its Close (reached either by
// the caller or by iterating to io.EOF through RowIterToRows-style
// consumption) always clears the statement's busy flag and finalizes its
// implicit transaction exactly once, matching Run/Get/All.
type statementIter struct {
	stmt   *Statement
	inner  sql.RowIter
	closed bool
}

func (it *statementIter) Next(ctx *sql.Context) (sql.Row, error) {
	row, err := it.inner.Next(ctx)
	if err == io.EOF {
		closeErr := it.inner.Close(ctx)
		it.finish(closeErr)
	} else if err != nil {
		it.inner.Close(ctx)
		it.finish(err)
	}
	return row, err
}

func (it *statementIter) Close(ctx *sql.Context) error {
	err := it.inner.Close(ctx)
	it.finish(err)
	return err
}

// finish runs exactly once regardless of whether the caller drives the
// wrapped iterator to io.EOF or abandons it early via Close (spec §5
// "Close must be idempotent and is always called by the consumer").
func (it *statementIter) finish(err error) {
	if it.closed {
		return
	}
	it.closed = true
	it.stmt.busy = false
	it.stmt.iter = nil
	it.stmt.session.endOfStatement(err)
}

// catalogFor lets an embedder reach the underlying catalog from a
// Statement's session without threading the Engine through separately.
func (s *Statement) catalogFor() *catalog.Catalog { return s.session.engine.catalog }

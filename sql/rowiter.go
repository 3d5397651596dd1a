package sql

import "io"

// RowIter is the pull-based async-iterator abstraction every relational
// instruction produces (spec §4.3, §9 "Async-generator model"). Next
// returns io.EOF once exhausted. Close must be idempotent and is always
// called by the consumer, including on early abandonment, so that any
// cursor or layer reference the iterator holds is released — there is no
// preemptive cancellation (spec §5).
type RowIter interface {
	Next(ctx *Context) (Row, error)
	Close(ctx *Context) error
}

// sliceIter is the simplest RowIter: a fixed, already-materialized slice of
// rows, used by ephemeral tables and constant-folded sources.
type sliceIter struct {
	rows []Row
	pos  int
}

func NewSliceIter(rows []Row) RowIter {
	return &sliceIter{rows: rows}
}

func (s *sliceIter) Next(ctx *Context) (Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sliceIter) Close(ctx *Context) error { return nil }

// RowIterToRows drains iter into a slice, always calling Close even on
// error, matching the teacher's RowIterToRows helper used at statement
// boundaries (engine.go: executeEvent drains the definition iterator purely
// for its side effects).
func RowIterToRows(ctx *Context, iter RowIter) ([]Row, error) {
	defer iter.Close(ctx)
	var out []Row
	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
}

// EmptyIter is a RowIter that yields no rows.
var EmptyIter RowIter = NewSliceIter(nil)

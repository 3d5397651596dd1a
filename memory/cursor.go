package memory

import (
	"io"
	"strings"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

// cursor scans one access path chosen by Module.BestIndex (spec §4.6
// "Scan"). Its snapshot is captured once, at Filter, from the owning
// connection's current effective view — stable for the cursor's lifetime
// per the "mutation-safe iterator" requirement (memory/tree.go's Iterator
// doc comment explains why persistence alone provides this).
type cursor struct {
	conn   *connection
	schema *sql.TableSchema
	pkCols []sql.IndexColumn

	snap snapshot

	// primary-tree-driven scan (full scan, PK equality, PK range)
	it       *Iterator
	single   *sql.Row
	consumed bool

	// secondary-index-driven scan (index equality, index range): idxIt
	// walks the index tree's entries, each yielding a fan-out list of
	// primary keys whose rows are fetched from the primary tree in turn.
	idxIt     *Iterator
	fanout    []Key
	fanoutPos int

	rangeCol                 sql.IndexColumn
	lowerStrict, upperStrict bool
	haveLower, haveUpper     bool
	lowerVal, upperVal       sql.Value
}

var _ vtab.Cursor = (*cursor)(nil)

func (c *cursor) Filter(ctx *sql.Context, idxNum int, idxStr string, args []sql.Value) error {
	c.snap = c.conn.effective()
	c.it, c.idxIt, c.fanout, c.fanoutPos, c.single, c.consumed = nil, nil, nil, 0, nil, false
	c.haveLower, c.haveUpper = false, false

	switch idxNum {
	case idxFullScan:
		if idxStr == "desc" {
			c.it = c.snap.primary.Descend(nil, nil)
		} else {
			c.it = c.snap.primary.Ascend(nil, nil)
		}

	case idxPKEquality:
		pk := Key(args)
		if row, ok := c.snap.primary.Get(pk); ok {
			r := row.(sql.Row)
			c.single = &r
		}

	case idxPKRange:
		parts := strings.Split(idxStr, ":") // "pk":"lowerOp,upperOp":"dir"
		lowerOp, upperOp := splitRangeOps(parts[1])
		c.filterRange(c.snap.primary, c.pkCols[0], lowerOp, upperOp, parts[2], args)

	case idxSecondaryEquality:
		name := strings.TrimPrefix(idxStr, "idx:")
		key := Key(args)
		if v, ok := c.snap.indexes[name].Get(key); ok {
			c.fanout = append([]Key(nil), v.([]Key)...)
		}

	case idxSecondaryRange:
		parts := strings.Split(idxStr, ":") // "idx":"<name>":"lowerOp,upperOp":"dir"
		name := parts[1]
		lowerOp, upperOp := splitRangeOps(parts[2])
		col := indexColumn(c.schema, name)
		c.filterRange(c.snap.indexes[name], col, lowerOp, upperOp, parts[3], args)
	}
	return nil
}

func splitRangeOps(s string) (lowerOp, upperOp string) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", ""
}

func indexColumn(schema *sql.TableSchema, name string) sql.IndexColumn {
	for _, idx := range schema.Indexes {
		if idx.Name == name {
			return idx.Columns[0]
		}
	}
	return sql.IndexColumn{}
}

// filterRange builds a bound-seeded iterator over t using lowerOp/upperOp
// ("", "gt", "gte", "lt", "lte") against col's leading value, consuming
// args in the order BestIndex assigned them (lower bound first, if any,
// then upper). Strict operators filter their one boundary row out in
// Next, since BoundFunc's three-way result alone can't distinguish "at
// the bound" from "past it".
func (c *cursor) filterRange(t indexTree, col sql.IndexColumn, lowerOp, upperOp, dir string, args []sql.Value) {
	argi := 0
	var start, stop BoundFunc
	haveLower, haveUpper := lowerOp != "", upperOp != ""
	var lowerVal, upperVal sql.Value
	var lowerStrict, upperStrict bool
	if haveLower {
		lowerVal = args[argi]
		argi++
		lowerStrict = lowerOp == "gt"
	}
	if haveUpper {
		upperVal = args[argi]
		argi++
		upperStrict = upperOp == "lt"
	}

	if dir == "desc" {
		if haveUpper {
			start = ColumnBound(0, col.Descending, upperVal)
		}
		if haveLower {
			stop = ColumnBound(0, col.Descending, lowerVal)
		}
		c.it = t.Descend(start, stop)
	} else {
		if haveLower {
			start = ColumnBound(0, col.Descending, lowerVal)
		}
		if haveUpper {
			stop = ColumnBound(0, col.Descending, upperVal)
		}
		c.it = t.Ascend(start, stop)
	}
	c.rangeCol = col
	c.lowerStrict, c.upperStrict = lowerStrict, upperStrict
	c.lowerVal, c.upperVal = lowerVal, upperVal
	c.haveLower, c.haveUpper = haveLower, haveUpper
}

func (c *cursor) Next(ctx *sql.Context) (sql.Row, error) {
	if c.single != nil {
		if c.consumed {
			return nil, io.EOF
		}
		c.consumed = true
		return *c.single, nil
	}

	if c.fanout != nil || c.idxIt != nil {
		return c.nextFromFanout()
	}

	if c.it == nil {
		return nil, io.EOF
	}
	for {
		e, ok := c.it.Next()
		if !ok {
			return nil, io.EOF
		}
		if c.skipsStrictBoundary(e.Key) {
			continue
		}
		if row, ok := e.Val.(sql.Row); ok {
			return row, nil
		}
		// A secondary-index-tree entry's value is a fan-out list of
		// primary keys, not a row; switch to draining it via the primary
		// tree, keeping the index iterator alive to resume afterward.
		c.idxIt = c.it
		c.it = nil
		c.fanout = e.Val.([]Key)
		c.fanoutPos = 0
		return c.nextFromFanout()
	}
}

func (c *cursor) nextFromFanout() (sql.Row, error) {
	for {
		for c.fanoutPos < len(c.fanout) {
			pk := c.fanout[c.fanoutPos]
			c.fanoutPos++
			if row, ok := c.snap.primary.Get(pk); ok {
				return row.(sql.Row), nil
			}
		}
		if c.idxIt == nil {
			return nil, io.EOF
		}
		e, ok := c.idxIt.Next()
		if !ok {
			return nil, io.EOF
		}
		if c.skipsStrictBoundary(e.Key) {
			continue
		}
		c.fanout = e.Val.([]Key)
		c.fanoutPos = 0
	}
}

// skipsStrictBoundary drops the single row sitting exactly on a strict
// (gt/lt) bound, the one case BoundFunc's three-way result can't encode
// on its own (spec §4.6 scan: "stop early when an upper bound is crossed").
func (c *cursor) skipsStrictBoundary(key Key) bool {
	if c.haveLower && c.lowerStrict && sql.Equal(key[0], c.lowerVal) {
		return true
	}
	if c.haveUpper && c.upperStrict && sql.Equal(key[0], c.upperVal) {
		return true
	}
	return false
}

func (c *cursor) Close(ctx *sql.Context) error {
	c.it, c.idxIt, c.fanout, c.single = nil, nil, nil, nil
	return nil
}

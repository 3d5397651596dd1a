package sql

// scopeFrame is one entry in the active-scope stack: a row descriptor
// together with the row getter it describes (spec §3 "scope frame").
type scopeFrame struct {
	descriptor RowDescriptor
	getter     RowGetter
}

// attributeSlot is the secondary index entry for O(1) attribute resolution
// (spec §4.3 "Row-context map"). installed is true once a frame has bound
// this attribute; the getter may still yield no current row (not yet
// positioned), which resolveLive below treats as "fall back to scan".
type attributeSlot struct {
	frameIndex int
	columnIdx  int
	installed  bool
}

// RowContext maps active row descriptors to row-getter closures across
// nested scopes, with a flat attribute index for O(1) lookup (spec §4.3).
// It is confined to a single executing statement and must never be shared
// across concurrently-running statements.
type RowContext struct {
	frames []scopeFrame
	index  map[AttributeID]attributeSlot
}

func NewRowContext() *RowContext {
	return &RowContext{index: make(map[AttributeID]attributeSlot)}
}

// Push installs a new scope frame (newest-on-top) and returns a token used
// to Pop it again. Every attribute in descriptor becomes resolvable through
// the index, shadowing any outer frame that also describes it.
func (rc *RowContext) Push(descriptor RowDescriptor, getter RowGetter) (token int) {
	rc.frames = append(rc.frames, scopeFrame{descriptor: descriptor, getter: getter})
	frameIdx := len(rc.frames) - 1
	for attr, col := range descriptor {
		rc.index[attr] = attributeSlot{frameIndex: frameIdx, columnIdx: col, installed: true}
	}
	return frameIdx
}

// Pop removes the most recently pushed frame. token must be the value
// returned by the matching Push; mismatched push/pop nesting is an internal
// error the caller's defer/finally discipline must prevent.
func (rc *RowContext) Pop(token int) {
	if token != len(rc.frames)-1 {
		panic("sql: RowContext.Pop called out of order")
	}
	frame := rc.frames[token]
	rc.frames = rc.frames[:token]
	for attr := range frame.descriptor {
		if slot, ok := rc.index[attr]; ok && slot.frameIndex == token {
			delete(rc.index, attr)
			rc.reindexAttribute(attr)
		}
	}
}

// reindexAttribute restores the index entry for attr to the next-outer frame
// that still describes it, newest-to-oldest, after the owning frame popped.
func (rc *RowContext) reindexAttribute(attr AttributeID) {
	for i := len(rc.frames) - 1; i >= 0; i-- {
		if col, ok := rc.frames[i].descriptor[attr]; ok {
			rc.index[attr] = attributeSlot{frameIndex: i, columnIdx: col, installed: true}
			return
		}
	}
}

// Resolve returns the current value of attr, probing the O(1) index first
// and falling back to a newest-to-oldest scan of active frames if the
// indexed frame's getter has no row positioned yet (spec §4.3).
func (rc *RowContext) Resolve(attr AttributeID) (Value, bool) {
	if slot, ok := rc.index[attr]; ok {
		if row := rc.frames[slot.frameIndex].getter(); row != nil {
			return row[slot.columnIdx], true
		}
	}
	for i := len(rc.frames) - 1; i >= 0; i-- {
		if col, ok := rc.frames[i].descriptor[attr]; ok {
			if row := rc.frames[i].getter(); row != nil {
				return row[col], true
			}
		}
	}
	return Null, false
}

// Current returns the row held by the innermost active frame, or nil if no
// frame is installed or that frame's getter has no row positioned yet.
// Used by plan-builder-internal passthrough expressions (PositionalRef)
// that read by row position rather than by attribute identity.
func (rc *RowContext) Current() Row {
	if len(rc.frames) == 0 {
		return nil
	}
	return rc.frames[len(rc.frames)-1].getter()
}

// CheckIndexCoherent is a test hook implementing the property-based
// invariant from spec §8: the attribute-index contents equal a brute-force
// scan of active descriptors newest-first, for every attribute currently
// installed.
func (rc *RowContext) CheckIndexCoherent() bool {
	for attr, slot := range rc.index {
		found := false
		for i := len(rc.frames) - 1; i >= 0; i-- {
			if col, ok := rc.frames[i].descriptor[attr]; ok {
				found = true
				if i != slot.frameIndex || col != slot.columnIdx {
					return false
				}
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Slot is a long-lived streaming installation point (spec §4.3): install
// once, mutate the referenced row per output row, tear down at end of scan.
type Slot struct {
	rc    *RowContext
	token int
	cur   Row
}

// NewSlot installs descriptor into rc with a getter that reads the Slot's
// mutable current row, and returns the Slot so the caller can update Set
// per emitted row.
func NewSlot(rc *RowContext, descriptor RowDescriptor) *Slot {
	s := &Slot{rc: rc}
	s.token = rc.Push(descriptor, func() Row { return s.cur })
	return s
}

func (s *Slot) Set(row Row) { s.cur = row }
func (s *Slot) Close()      { s.rc.Pop(s.token) }

// WithContext pushes descriptor for the duration of fn (a one-shot
// installation, spec §4.3), guaranteeing the frame is popped even if fn
// panics or returns an error.
func WithContext(rc *RowContext, descriptor RowDescriptor, row Row, fn func() error) error {
	token := rc.Push(descriptor, func() Row { return row })
	defer rc.Pop(token)
	return fn()
}

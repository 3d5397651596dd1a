package sql

import "sync/atomic"

// AttributeID uniquely identifies one column produced anywhere in a plan
// (spec §3). IDs are allocated from a per-database counter — per the design
// notes, this and every other piece of "global" mutable state in the source
// system is scoped per database instance, never per process.
type AttributeID uint64

// AttributeAllocator hands out monotonically increasing attribute IDs for a
// single database instance.
type AttributeAllocator struct {
	next atomic.Uint64
}

func NewAttributeAllocator() *AttributeAllocator {
	return &AttributeAllocator{}
}

func (a *AttributeAllocator) Next() AttributeID {
	return AttributeID(a.next.Add(1))
}

package kvmap

import "context"

// Test-only accessors. The slab's raw contents (tombstones included) are
// not part of the public API, but the sortedness/uniqueness invariants
// are stated over them, so tests need to see them.

// SlabSnapshot returns the slab's [0, len) region, tombstones included.
func (m *Map) SlabSnapshot() ([]KvEntry, error) {
	return m.slab.read(context.Background())
}

// SlabLen returns the slab length (live + tombstones), as opposed to the
// live count Len reports.
func (m *Map) SlabLen() int {
	return m.slab.lenOf()
}

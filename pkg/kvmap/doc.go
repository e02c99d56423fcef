// Package kvmap implements a batched, sorted, fixed-capacity 32-bit
// key/value map whose mutation pipeline runs as device compute passes
// (sort, dedup, merge) rather than as host-side data-structure edits.
//
// A [Map] holds its live data in a single sorted slab on a [compute.Device]
// (see internal/compute and internal/compute/cpu). BulkPut never edits
// individual slots in isolation: it re-sorts and re-merges the whole
// batch against the slab; BulkGet, BulkDelete and Range resolve every
// query via binary search over the slab's sorted order, and BulkDelete
// only overwrites the values of the slots it finds. There is no
// incremental insert; the cost of a batch is always proportional to
// slab size plus batch size, never to query count alone.
//
// Map is not safe for concurrent use. Callers needing concurrent access
// must serialize it themselves; the device queue orders submissions, not
// host-side method calls.
package kvmap

package kvmap

import (
	"context"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// BulkPut inserts or updates entries, en masse, via the sort → dedup →
// merge device pipeline. An empty batch is a no-op. Preconditions (no
// tombstone values, no internal duplicate keys, capacity) are all
// validated host-side before any device buffer is written; a validation
// failure leaves the map's state completely unchanged.
func (m *Map) BulkPut(entries []KvEntry) error {
	return m.bulkPut(context.Background(), entries)
}

func (m *Map) bulkPut(ctx context.Context, entries []KvEntry) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	// (a) tombstone check, (b) duplicate check — both atomic, host-only.
	seen := make(map[uint32]struct{}, len(entries))
	for _, e := range entries {
		if e.Value == Tombstone {
			return &TombstoneReservedError{Value: e.Value}
		}
		if _, dup := seen[e.Key]; dup {
			return &DuplicateKeyError{Key: e.Key}
		}
		seen[e.Key] = struct{}{}
	}

	slabEntries, err := m.slab.read(ctx)
	if err != nil {
		return err
	}

	// (c)/(d) capacity check: net_new_unique counts batch keys that do not
	// already occupy a slab slot, live or tombstoned (Decision D2 in
	// DESIGN.md — a structural probe, not the tombstone-filtering get
	// used for the live-count delta below, so reintroducing a
	// tombstoned key never double-charges capacity).
	netNewStructural := 0
	for key := range seen {
		if !structurallyPresent(slabEntries, key) {
			netNewStructural++
		}
	}
	if m.slab.lenOf()+netNewStructural > m.capacity {
		return &CapacityExceededError{Capacity: m.capacity, Requested: m.slab.lenOf() + netNewStructural}
	}

	// Live-count delta: count batch keys that were not visible (live)
	// before this put, via the tombstone-filtering bulk_get.
	keys := make([]uint32, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	before, err := m.bulkGet(ctx, keys)
	if err != nil {
		return err
	}
	newlyVisible := 0
	for _, r := range before {
		if !r.Found {
			newlyVisible++
		}
	}

	// (e) write input buffer, padded to the next power of two with the
	// sort sentinel for the bitonic stage.
	padded := nextPow2(len(entries))
	padBuf := make([]KvEntry, padded)
	copy(padBuf, entries)
	for i := len(entries); i < padded; i++ {
		padBuf[i] = KvEntry{Key: sentinelKey, Value: 0}
	}
	inputBuf := make([]byte, padded*kvEntrySize)
	encodeEntries(padBuf, inputBuf)
	if err := m.device.Write(m.input, 0, inputBuf); err != nil {
		return deviceRuntimeErr("write input buffer", err)
	}
	if err := m.device.Write(m.rawLen, 0, encodeLengthRecord(len(entries))); err != nil {
		return deviceRuntimeErr("write raw_len", err)
	}

	// (f) invoke the three-stage pipeline.
	if err := m.runBulkPutPipeline(ctx, padded); err != nil {
		return err
	}

	// (g) read back merged length, copy merge buffer over slab, update
	// slab length.
	mergeLenRaw, err := m.device.Read(ctx, m.mergeLen, 0, lengthRecordSize)
	if err != nil {
		return deviceRuntimeErr("read merge_len", err)
	}
	mergedLen := decodeLengthRecord(mergeLenRaw)

	enc := m.device.NewEncoder()
	enc.CopyBuffer(m.mergeBuf, 0, m.slab.entries, 0, m.capacity*kvEntrySize)
	if err := m.device.Submit(ctx, enc); err != nil {
		return deviceRuntimeErr("copy merge buffer to slab", err)
	}
	if err := m.slab.updateLen(ctx, mergedLen); err != nil {
		return err
	}

	// (h) update live count.
	m.liveCount += newlyVisible

	return nil
}

// runBulkPutPipeline records and submits the sort, dedup and merge
// dispatches for a batch already written to m.input. Because all three
// stages are recorded on one encoder, each observes the previous stage's
// writes per the command-encoder ordering guarantee.
func (m *Map) runBulkPutPipeline(ctx context.Context, paddedLen int) error {
	enc := m.device.NewEncoder()

	enc.Dispatch(m.pipeline("bitonic_sort"), compute.Bindings{
		"input":   m.input,
		"raw_len": m.rawLen,
	}, workgroupsFor(paddedLen))

	enc.Dispatch(m.pipeline("dedup_compact"), compute.Bindings{
		"input":     m.input,
		"raw_len":   m.rawLen,
		"dedup_len": m.dedupLen,
	}, 1)

	enc.Dispatch(m.pipeline("merge_monotone"), compute.Bindings{
		"slab":       m.slab.entries,
		"slab_len":   m.slab.lenBuf,
		"input":      m.input,
		"dedup_len":  m.dedupLen,
		"merge_out":  m.mergeBuf,
		"merge_len":  m.mergeLen,
	}, 1)

	if err := m.device.Submit(ctx, enc); err != nil {
		return deviceRuntimeErr("submit bulk_put pipeline", err)
	}
	return nil
}

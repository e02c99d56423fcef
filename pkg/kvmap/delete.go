package kvmap

import (
	"context"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// BulkDelete marks every matching slab entry as a tombstone, in place.
// Keys not present are silent no-ops; deleting an already tombstoned key
// changes nothing. An empty key slice submits no work.
//
// The slab's sorted order and key uniqueness are untouched: only values
// are overwritten, so no re-merge is needed.
func (m *Map) BulkDelete(keys []uint32) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.bulkDelete(context.Background(), keys)
}

func (m *Map) bulkDelete(ctx context.Context, keys []uint32) error {
	if len(keys) == 0 {
		return nil
	}

	// Dedup on the host so a key repeated in the batch decrements the
	// live count at most once.
	seen := make(map[uint32]struct{}, len(keys))
	unique := make([]uint32, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}

	// Count how many of the keys are currently live, before the device
	// overwrites them. Tombstone-filtering get is exactly the predicate
	// the live count tracks.
	before, err := m.bulkGet(ctx, unique)
	if err != nil {
		return err
	}
	liveHits := 0
	for _, r := range before {
		if r.Found {
			liveHits++
		}
	}

	keysBuf, err := m.device.NewBuffer(len(unique)*4, compute.UsageStorage|compute.UsageCopyDst)
	if err != nil {
		return deviceRuntimeErr("allocate keys buffer", err)
	}
	defer m.device.Release(keysBuf)

	if err := m.device.Write(keysBuf, 0, encodeKeys(unique)); err != nil {
		return deviceRuntimeErr("write keys buffer", err)
	}

	enc := m.device.NewEncoder()
	enc.Dispatch(m.pipeline("bulk_delete"), compute.Bindings{
		"slab":     m.slab.entries,
		"slab_len": m.slab.lenBuf,
		"keys":     keysBuf,
	}, workgroupsFor(len(unique)))
	if err := m.device.Submit(ctx, enc); err != nil {
		return deviceRuntimeErr("submit bulk_delete pipeline", err)
	}

	m.liveCount -= liveHits
	return nil
}

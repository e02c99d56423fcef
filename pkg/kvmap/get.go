package kvmap

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// BulkGet resolves each query key against the slab via the parallel
// binary-search pipeline and returns one result per key, in input
// order. A slot holding the tombstone reports not-found. An empty key
// slice returns an empty result without submitting any device work.
func (m *Map) BulkGet(keys []uint32) ([]GetResult, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.bulkGet(context.Background(), keys)
}

func (m *Map) bulkGet(ctx context.Context, keys []uint32) ([]GetResult, error) {
	if len(keys) == 0 {
		return []GetResult{}, nil
	}

	// Query buffers are sized to the batch, not the capacity: the kernel
	// derives its query count from the keys buffer size, and a query batch
	// may legitimately be larger than the map's capacity.
	keysBuf, err := m.device.NewBuffer(len(keys)*4, compute.UsageStorage|compute.UsageCopyDst)
	if err != nil {
		return nil, deviceRuntimeErr("allocate keys buffer", err)
	}
	defer m.device.Release(keysBuf)

	resultsBuf, err := m.device.NewBuffer(len(keys)*kvEntrySize, compute.UsageStorage|compute.UsageCopySrc)
	if err != nil {
		return nil, deviceRuntimeErr("allocate results buffer", err)
	}
	defer m.device.Release(resultsBuf)

	if err := m.device.Write(keysBuf, 0, encodeKeys(keys)); err != nil {
		return nil, deviceRuntimeErr("write keys buffer", err)
	}

	enc := m.device.NewEncoder()
	enc.Dispatch(m.pipeline("bulk_get"), compute.Bindings{
		"slab":     m.slab.entries,
		"slab_len": m.slab.lenBuf,
		"keys":     keysBuf,
		"results":  resultsBuf,
	}, workgroupsFor(len(keys)))
	if err := m.device.Submit(ctx, enc); err != nil {
		return nil, deviceRuntimeErr("submit bulk_get pipeline", err)
	}

	raw, err := m.device.Read(ctx, resultsBuf, 0, len(keys)*kvEntrySize)
	if err != nil {
		return nil, deviceRuntimeErr("read results buffer", err)
	}

	out := make([]GetResult, len(keys))
	for i := range out {
		value := binary.LittleEndian.Uint32(raw[i*kvEntrySize : i*kvEntrySize+4])
		found := binary.LittleEndian.Uint32(raw[i*kvEntrySize+4 : i*kvEntrySize+8])
		out[i] = GetResult{Value: value, Found: found != 0}
	}
	return out, nil
}

// structurallyPresent reports whether key occupies a slab slot at all,
// live or tombstoned. Used only for the capacity precondition: a
// tombstoned key reintroduced by a put consumes no new slot, so it must
// not count against capacity (Decision D2 in DESIGN.md).
func structurallyPresent(entries []KvEntry, key uint32) bool {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Key >= key })
	return i < len(entries) && entries[i].Key == key
}

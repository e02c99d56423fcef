package kvmap

import (
	"context"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// Range returns the live entries whose keys fall in the half-open
// interval [from, to), in ascending key order. Tombstoned entries
// are filtered out on readback. from >= to, an empty slab, and an
// interval disjoint from the stored keys all return an empty result.
func (m *Map) Range(from, to uint32) ([]KvEntry, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.rangeScan(context.Background(), from, to)
}

func (m *Map) rangeScan(ctx context.Context, from, to uint32) ([]KvEntry, error) {
	if from >= to || m.slab.lenOf() == 0 {
		return []KvEntry{}, nil
	}

	if err := m.device.Write(m.rangeFrom, 0, encodeKey(from)); err != nil {
		return nil, deviceRuntimeErr("write from_key", err)
	}
	if err := m.device.Write(m.rangeTo, 0, encodeKey(to)); err != nil {
		return nil, deviceRuntimeErr("write to_key", err)
	}

	enc := m.device.NewEncoder()
	enc.Dispatch(m.pipeline("range_scan"), compute.Bindings{
		"slab":     m.slab.entries,
		"slab_len": m.slab.lenBuf,
		"from_key": m.rangeFrom,
		"to_key":   m.rangeTo,
		"bounds":   m.rangeBounds,
	}, 1)
	if err := m.device.Submit(ctx, enc); err != nil {
		return nil, deviceRuntimeErr("submit range_scan pipeline", err)
	}

	boundsRaw, err := m.device.Read(ctx, m.rangeBounds, 0, lengthRecordSize)
	if err != nil {
		return nil, deviceRuntimeErr("read range bounds", err)
	}
	start, end := decodeRangeBounds(boundsRaw)
	if end <= start {
		return []KvEntry{}, nil
	}

	// Copy the contiguous payload out of the slab, then read it back. The
	// merge buffer doubles as the staging area: a range scan and a put
	// never share a submission, so the two uses cannot collide.
	size := (end - start) * kvEntrySize
	enc = m.device.NewEncoder()
	enc.CopyBuffer(m.slab.entries, start*kvEntrySize, m.mergeBuf, 0, size)
	if err := m.device.Submit(ctx, enc); err != nil {
		return nil, deviceRuntimeErr("copy range payload", err)
	}
	raw, err := m.device.Read(ctx, m.mergeBuf, 0, size)
	if err != nil {
		return nil, deviceRuntimeErr("read range payload", err)
	}

	entries := decodeEntries(raw)
	out := make([]KvEntry, 0, len(entries))
	for _, e := range entries {
		if e.Value != Tombstone {
			out = append(out, e)
		}
	}
	return out, nil
}

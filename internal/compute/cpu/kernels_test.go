// Kernel-level tests, driving each entry point through the same
// buffer/dispatch protocol pkg/kvmap uses, with hand-laid-out bytes.

package cpu

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// u32sLE packs values as consecutive little-endian u32s, the layout of
// the `keys` binding.
func u32sLE(values ...uint32) []byte {
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}
	return raw
}

type kernelHarness struct {
	t     *testing.T
	d     compute.Device
	ctx   context.Context
	pipes map[string]compute.Pipeline
}

func newKernelHarness(t *testing.T) *kernelHarness {
	t.Helper()

	d := New()
	t.Cleanup(func() { d.Close() })

	h := &kernelHarness{t: t, d: d, ctx: context.Background(), pipes: map[string]compute.Pipeline{}}
	for name, source := range map[string]string{
		"bitonic_sort":   ShaderSortBitonic,
		"dedup_compact":  ShaderDedupCompact,
		"merge_monotone": ShaderMergeMonotone,
		"bulk_get":       ShaderBulkGet,
		"bulk_delete":    ShaderBulkDelete,
		"range_scan":     ShaderRangeScan,
	} {
		p, err := d.NewPipeline(source, name)
		if err != nil {
			t.Fatalf("NewPipeline(%s) failed: %v", name, err)
		}
		h.pipes[name] = p
	}

	return h
}

func (h *kernelHarness) newBuffer(size int) compute.Buffer {
	h.t.Helper()

	buf, err := h.d.NewBuffer(size, compute.UsageStorage|compute.UsageUniform|compute.UsageCopySrc|compute.UsageCopyDst)
	if err != nil {
		h.t.Fatalf("NewBuffer(%d) failed: %v", size, err)
	}

	return buf
}

func (h *kernelHarness) writeEntries(buf compute.Buffer, entries []kvEntry) {
	h.t.Helper()

	raw := make([]byte, len(entries)*kvEntrySize)
	encodeEntries(entries, raw)
	if err := h.d.Write(buf, 0, raw); err != nil {
		h.t.Fatalf("writing entries: %v", err)
	}
}

func (h *kernelHarness) readEntries(buf compute.Buffer, n int) []kvEntry {
	h.t.Helper()

	raw, err := h.d.Read(h.ctx, buf, 0, n*kvEntrySize)
	if err != nil {
		h.t.Fatalf("reading entries: %v", err)
	}

	return decodeEntries(raw, n)
}

func (h *kernelHarness) writeLength(buf compute.Buffer, n int) {
	h.t.Helper()

	if err := h.d.Write(buf, 0, encodeLengthRecord(n)); err != nil {
		h.t.Fatalf("writing length record: %v", err)
	}
}

func (h *kernelHarness) readLength(buf compute.Buffer) int {
	h.t.Helper()

	raw, err := h.d.Read(h.ctx, buf, 0, lengthRecordSize)
	if err != nil {
		h.t.Fatalf("reading length record: %v", err)
	}

	return decodeLengthRecord(raw)
}

func (h *kernelHarness) dispatch(name string, bindings compute.Bindings, workgroups int) {
	h.t.Helper()

	enc := h.d.NewEncoder()
	enc.Dispatch(h.pipes[name], bindings, workgroups)
	if err := h.d.Submit(h.ctx, enc); err != nil {
		h.t.Fatalf("Submit(%s) failed: %v", name, err)
	}
}

func Test_BitonicSort_Orders_Padded_Batch_Without_Touching_Trailing_Garbage(t *testing.T) {
	t.Parallel()

	h := newKernelHarness(t)

	// Buffer holds 16 slots; batch of 5 pads to 8. Slots 8..16 carry
	// garbage from "a previous batch" and must come out untouched.
	input := h.newBuffer(16 * kvEntrySize)
	garbage := kvEntry{key: 3, value: 999}
	all := []kvEntry{
		{9, 90}, {1, 10}, {7, 70}, {3, 30}, {5, 50},
		{sentinelKey, 0}, {sentinelKey, 0}, {sentinelKey, 0},
		garbage, garbage, garbage, garbage, garbage, garbage, garbage, garbage,
	}
	h.writeEntries(input, all)

	rawLen := h.newBuffer(lengthRecordSize)
	h.writeLength(rawLen, 5)

	h.dispatch("bitonic_sort", compute.Bindings{"input": input, "raw_len": rawLen}, 1)

	got := h.readEntries(input, 16)
	wantKeys := []uint32{1, 3, 5, 7, 9, sentinelKey, sentinelKey, sentinelKey}
	for i, want := range wantKeys {
		if got[i].key != want {
			t.Fatalf("sorted key[%d] = %d, want %d", i, got[i].key, want)
		}
	}
	for i := 8; i < 16; i++ {
		if got[i] != garbage {
			t.Fatalf("slot %d past padded region was modified: %+v", i, got[i])
		}
	}
}

func Test_DedupCompact_Keeps_Last_Write_And_Reports_New_Length(t *testing.T) {
	t.Parallel()

	h := newKernelHarness(t)

	input := h.newBuffer(8 * kvEntrySize)
	h.writeEntries(input, []kvEntry{
		{1, 10}, {2, 20}, {2, 21}, {2, 22}, {3, 30}, {3, 31},
	})
	rawLen := h.newBuffer(lengthRecordSize)
	h.writeLength(rawLen, 6)
	dedupLen := h.newBuffer(lengthRecordSize)

	h.dispatch("dedup_compact", compute.Bindings{
		"input": input, "raw_len": rawLen, "dedup_len": dedupLen,
	}, 1)

	if n := h.readLength(dedupLen); n != 3 {
		t.Fatalf("dedup_len = %d, want 3", n)
	}
	got := h.readEntries(input, 3)
	want := []kvEntry{{1, 10}, {2, 22}, {3, 31}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("deduped[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func Test_MergeMonotone_Interleaves_Sorted_Runs_With_Input_Winning_Ties(t *testing.T) {
	t.Parallel()

	h := newKernelHarness(t)

	slab := h.newBuffer(8 * kvEntrySize)
	h.writeEntries(slab, []kvEntry{{1, 10}, {3, 30}, {5, tombstoneValue}})
	slabLen := h.newBuffer(lengthRecordSize)
	h.writeLength(slabLen, 3)

	input := h.newBuffer(8 * kvEntrySize)
	h.writeEntries(input, []kvEntry{{2, 200}, {3, 300}, {5, 500}})
	dedupLen := h.newBuffer(lengthRecordSize)
	h.writeLength(dedupLen, 3)

	mergeOut := h.newBuffer(8 * kvEntrySize)
	mergeLen := h.newBuffer(lengthRecordSize)

	h.dispatch("merge_monotone", compute.Bindings{
		"slab": slab, "slab_len": slabLen,
		"input": input, "dedup_len": dedupLen,
		"merge_out": mergeOut, "merge_len": mergeLen,
	}, 1)

	if n := h.readLength(mergeLen); n != 4 {
		t.Fatalf("merge_len = %d, want 4", n)
	}
	got := h.readEntries(mergeOut, 4)
	// Key 3 takes the input's value; key 5's tombstone is overwritten.
	want := []kvEntry{{1, 10}, {2, 200}, {3, 300}, {5, 500}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("merged[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func Test_BulkGet_Reports_Tombstoned_And_Missing_Keys_As_Absent(t *testing.T) {
	t.Parallel()

	h := newKernelHarness(t)

	slab := h.newBuffer(8 * kvEntrySize)
	h.writeEntries(slab, []kvEntry{{10, 1}, {20, tombstoneValue}, {30, 3}})
	slabLen := h.newBuffer(lengthRecordSize)
	h.writeLength(slabLen, 3)

	keys := h.newBuffer(4 * 4)
	if err := h.d.Write(keys, 0, u32sLE(10, 20, 30, 40)); err != nil {
		t.Fatalf("writing keys: %v", err)
	}
	results := h.newBuffer(4 * kvEntrySize)

	h.dispatch("bulk_get", compute.Bindings{
		"slab": slab, "slab_len": slabLen, "keys": keys, "results": results,
	}, 1)

	got := h.readEntries(results, 4) // (value, found) pairs share the entry layout
	want := []kvEntry{{1, 1}, {0, 0}, {3, 1}, {0, 0}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result[%d] = %+v, want (value=%d, found=%d)", i, got[i], want[i].key, want[i].value)
		}
	}
}

func Test_BulkDelete_Tombstones_Matching_Keys_In_Place(t *testing.T) {
	t.Parallel()

	h := newKernelHarness(t)

	slab := h.newBuffer(8 * kvEntrySize)
	h.writeEntries(slab, []kvEntry{{10, 1}, {20, 2}, {30, 3}})
	slabLen := h.newBuffer(lengthRecordSize)
	h.writeLength(slabLen, 3)

	keys := h.newBuffer(2 * 4)
	if err := h.d.Write(keys, 0, u32sLE(20, 40)); err != nil {
		t.Fatalf("writing keys: %v", err)
	}

	h.dispatch("bulk_delete", compute.Bindings{
		"slab": slab, "slab_len": slabLen, "keys": keys,
	}, 1)

	got := h.readEntries(slab, 3)
	want := []kvEntry{{10, 1}, {20, tombstoneValue}, {30, 3}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slab[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func Test_RangeScan_Writes_LowerBound_Pair_For_HalfOpen_Interval(t *testing.T) {
	t.Parallel()

	h := newKernelHarness(t)

	slab := h.newBuffer(8 * kvEntrySize)
	h.writeEntries(slab, []kvEntry{{10, 1}, {20, 2}, {30, 3}, {40, 4}})
	slabLen := h.newBuffer(lengthRecordSize)
	h.writeLength(slabLen, 4)

	fromKey := h.newBuffer(4)
	toKey := h.newBuffer(4)
	bounds := h.newBuffer(lengthRecordSize)

	cases := []struct {
		from, to   uint32
		start, end int
	}{
		{15, 35, 1, 3}, // keys 20, 30
		{10, 41, 0, 4}, // everything
		{41, 99, 4, 4}, // past the end
		{0, 10, 0, 0},  // before the start, to exclusive
		{20, 20, 1, 1}, // empty interval at an existing key
	}
	for _, tc := range cases {
		if err := h.d.Write(fromKey, 0, u32sLE(tc.from)); err != nil {
			t.Fatalf("writing from_key: %v", err)
		}
		if err := h.d.Write(toKey, 0, u32sLE(tc.to)); err != nil {
			t.Fatalf("writing to_key: %v", err)
		}

		h.dispatch("range_scan", compute.Bindings{
			"slab": slab, "slab_len": slabLen,
			"from_key": fromKey, "to_key": toKey, "bounds": bounds,
		}, 1)

		raw, err := h.d.Read(h.ctx, bounds, 0, lengthRecordSize)
		if err != nil {
			t.Fatalf("reading bounds: %v", err)
		}
		start, end := decodeRangeBounds(raw)
		if start != tc.start || end != tc.end {
			t.Fatalf("range [%d, %d): bounds = (%d, %d), want (%d, %d)",
				tc.from, tc.to, start, end, tc.start, tc.end)
		}
	}
}

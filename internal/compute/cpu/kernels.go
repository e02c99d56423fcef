package cpu

import (
	"fmt"
	"sync"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// workgroupSize mirrors the shader ABI's fixed workgroup size of 64
// threads, used to size the goroutine fan-out in bulk_get and
// bulk_delete.
const workgroupSize = 64

func bufferOf(bindings compute.Bindings, name string) (*buffer, error) {
	b, ok := bindings[name]
	if !ok {
		return nil, fmt.Errorf("cpu: missing binding %q", name)
	}
	buf, ok := b.(*buffer)
	if !ok {
		return nil, fmt.Errorf("cpu: binding %q is not a cpu buffer", name)
	}
	return buf, nil
}

// kernelBitonicSort implements shaders/sort_bitonic.wgsl. One dispatch
// runs the whole (k, j) schedule described there as nested loops, applying
// the same compare-swap rule for every pair.
func kernelBitonicSort(bindings compute.Bindings, _ int) error {
	input, err := bufferOf(bindings, "input")
	if err != nil {
		return err
	}
	rawLen, err := bufferOf(bindings, "raw_len")
	if err != nil {
		return err
	}
	lenBuf, err := rawLen.readAt(0, lengthRecordSize)
	if err != nil {
		return err
	}
	n := decodeLengthRecord(lenBuf)

	// The caller pads the batch to the next power of two with sentinel
	// entries; only that region participates in the sort. Bytes past it
	// are garbage left over from earlier batches.
	paddedLen := nextPow2(n)
	if limit := input.Size() / kvEntrySize; paddedLen > limit {
		paddedLen = limit
	}
	raw, err := input.readAt(0, paddedLen*kvEntrySize)
	if err != nil {
		return err
	}
	entries := decodeEntries(raw, paddedLen)

	for k := 2; k <= paddedLen; k <<= 1 {
		for j := k / 2; j > 0; j >>= 1 {
			for i := 0; i < paddedLen; i++ {
				ixj := i ^ j
				if ixj <= i {
					continue
				}
				ascending := i&k == 0
				if (ascending && entries[i].key > entries[ixj].key) ||
					(!ascending && entries[i].key < entries[ixj].key) {
					entries[i], entries[ixj] = entries[ixj], entries[i]
				}
			}
		}
	}

	out := make([]byte, len(raw))
	encodeEntries(entries, out)
	return input.writeAt(0, out)
}

// kernelDedupCompact implements shaders/dedup_compact.wgsl.
func kernelDedupCompact(bindings compute.Bindings, _ int) error {
	input, err := bufferOf(bindings, "input")
	if err != nil {
		return err
	}
	rawLen, err := bufferOf(bindings, "raw_len")
	if err != nil {
		return err
	}
	dedupLen, err := bufferOf(bindings, "dedup_len")
	if err != nil {
		return err
	}

	lenBuf, err := rawLen.readAt(0, lengthRecordSize)
	if err != nil {
		return err
	}
	n := decodeLengthRecord(lenBuf)

	raw, err := input.readAt(0, n*kvEntrySize)
	if err != nil {
		return err
	}
	entries := decodeEntries(raw, n)

	write := 0
	for read := 0; read < n; read++ {
		if write > 0 && entries[write-1].key == entries[read].key {
			entries[write-1] = entries[read]
		} else {
			entries[write] = entries[read]
			write++
		}
	}

	out := make([]byte, write*kvEntrySize)
	encodeEntries(entries[:write], out)
	if err := input.writeAt(0, out); err != nil {
		return err
	}
	return dedupLen.writeAt(0, encodeLengthRecord(write))
}

// kernelMergeMonotone implements shaders/merge_monotone.wgsl.
func kernelMergeMonotone(bindings compute.Bindings, _ int) error {
	slab, err := bufferOf(bindings, "slab")
	if err != nil {
		return err
	}
	slabLenBuf, err := bufferOf(bindings, "slab_len")
	if err != nil {
		return err
	}
	input, err := bufferOf(bindings, "input")
	if err != nil {
		return err
	}
	dedupLenBuf, err := bufferOf(bindings, "dedup_len")
	if err != nil {
		return err
	}
	mergeOut, err := bufferOf(bindings, "merge_out")
	if err != nil {
		return err
	}
	mergeLen, err := bufferOf(bindings, "merge_len")
	if err != nil {
		return err
	}

	slabLenVal, err := slabLenBuf.readAt(0, lengthRecordSize)
	if err != nil {
		return err
	}
	slabN := decodeLengthRecord(slabLenVal)
	dedupLenVal, err := dedupLenBuf.readAt(0, lengthRecordSize)
	if err != nil {
		return err
	}
	dedupN := decodeLengthRecord(dedupLenVal)

	slabRaw, err := slab.readAt(0, slabN*kvEntrySize)
	if err != nil {
		return err
	}
	slabEntries := decodeEntries(slabRaw, slabN)

	inputRaw, err := input.readAt(0, dedupN*kvEntrySize)
	if err != nil {
		return err
	}
	inputEntries := decodeEntries(inputRaw, dedupN)

	merged := make([]kvEntry, 0, slabN+dedupN)
	a, b := 0, 0
	for a < slabN && b < dedupN {
		switch {
		case slabEntries[a].key < inputEntries[b].key:
			merged = append(merged, slabEntries[a])
			a++
		case slabEntries[a].key > inputEntries[b].key:
			merged = append(merged, inputEntries[b])
			b++
		default:
			merged = append(merged, inputEntries[b]) // input wins on tie
			a++
			b++
		}
	}
	merged = append(merged, slabEntries[a:]...)
	merged = append(merged, inputEntries[b:]...)

	out := make([]byte, len(merged)*kvEntrySize)
	encodeEntries(merged, out)
	if err := mergeOut.writeAt(0, out); err != nil {
		return err
	}
	return mergeLen.writeAt(0, encodeLengthRecord(len(merged)))
}

// kernelBulkGet implements shaders/bulk_get.wgsl, fanning one goroutine out
// per workgroupSize keys.
func kernelBulkGet(bindings compute.Bindings, _ int) error {
	slab, err := bufferOf(bindings, "slab")
	if err != nil {
		return err
	}
	slabLenBuf, err := bufferOf(bindings, "slab_len")
	if err != nil {
		return err
	}
	keysBuf, err := bufferOf(bindings, "keys")
	if err != nil {
		return err
	}
	results, err := bufferOf(bindings, "results")
	if err != nil {
		return err
	}

	slabLenVal, err := slabLenBuf.readAt(0, lengthRecordSize)
	if err != nil {
		return err
	}
	slabN := decodeLengthRecord(slabLenVal)
	slabRaw, err := slab.readAt(0, slabN*kvEntrySize)
	if err != nil {
		return err
	}
	slabEntries := decodeEntries(slabRaw, slabN)

	queryCount := keysBuf.Size() / 4
	keysRaw, err := keysBuf.readAt(0, keysBuf.Size())
	if err != nil {
		return err
	}

	out := make([]byte, queryCount*kvEntrySize)
	var wg sync.WaitGroup
	for start := 0; start < queryCount; start += workgroupSize {
		end := min(start+workgroupSize, queryCount)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				key := decodeU32(keysRaw, i)
				idx := lowerBound(slabEntries, slabN, key)
				found := uint32(0)
				value := uint32(0)
				if idx < slabN && slabEntries[idx].key == key && slabEntries[idx].value != tombstoneValue {
					found = 1
					value = slabEntries[idx].value
				}
				encodeU32Pair(out[i*kvEntrySize:i*kvEntrySize+kvEntrySize], value, found)
			}
		}(start, end)
	}
	wg.Wait()

	return results.writeAt(0, out)
}

// kernelBulkDelete implements shaders/bulk_delete.wgsl.
func kernelBulkDelete(bindings compute.Bindings, _ int) error {
	slab, err := bufferOf(bindings, "slab")
	if err != nil {
		return err
	}
	slabLenBuf, err := bufferOf(bindings, "slab_len")
	if err != nil {
		return err
	}
	keysBuf, err := bufferOf(bindings, "keys")
	if err != nil {
		return err
	}

	slabLenVal, err := slabLenBuf.readAt(0, lengthRecordSize)
	if err != nil {
		return err
	}
	slabN := decodeLengthRecord(slabLenVal)
	slabRaw, err := slab.readAt(0, slabN*kvEntrySize)
	if err != nil {
		return err
	}
	slabEntries := decodeEntries(slabRaw, slabN)

	queryCount := keysBuf.Size() / 4
	keysRaw, err := keysBuf.readAt(0, keysBuf.Size())
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for start := 0; start < queryCount; start += workgroupSize {
		end := min(start+workgroupSize, queryCount)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				key := decodeU32(keysRaw, i)
				idx := lowerBound(slabEntries, slabN, key)
				if idx < slabN && slabEntries[idx].key == key {
					slabEntries[idx].value = tombstoneValue
				}
			}
		}(start, end)
	}
	wg.Wait()

	out := make([]byte, slabN*kvEntrySize)
	encodeEntries(slabEntries, out)
	return slab.writeAt(0, out)
}

// kernelRangeScan implements shaders/range_scan.wgsl.
func kernelRangeScan(bindings compute.Bindings, _ int) error {
	slab, err := bufferOf(bindings, "slab")
	if err != nil {
		return err
	}
	slabLenBuf, err := bufferOf(bindings, "slab_len")
	if err != nil {
		return err
	}
	fromKeyBuf, err := bufferOf(bindings, "from_key")
	if err != nil {
		return err
	}
	toKeyBuf, err := bufferOf(bindings, "to_key")
	if err != nil {
		return err
	}
	bounds, err := bufferOf(bindings, "bounds")
	if err != nil {
		return err
	}

	slabLenVal, err := slabLenBuf.readAt(0, lengthRecordSize)
	if err != nil {
		return err
	}
	slabN := decodeLengthRecord(slabLenVal)
	slabRaw, err := slab.readAt(0, slabN*kvEntrySize)
	if err != nil {
		return err
	}
	slabEntries := decodeEntries(slabRaw, slabN)

	fromRaw, err := fromKeyBuf.readAt(0, 4)
	if err != nil {
		return err
	}
	toRaw, err := toKeyBuf.readAt(0, 4)
	if err != nil {
		return err
	}
	fromKey := decodeU32(fromRaw, 0)
	toKey := decodeU32(toRaw, 0)

	start := lowerBound(slabEntries, slabN, fromKey)
	end := lowerBound(slabEntries, slabN, toKey)
	return bounds.writeAt(0, encodeRangeBounds(start, end))
}

package cpu

import "encoding/binary"

// kvEntrySize is the wire size of one KvEntry: a u32 key followed by a u32
// value (which doubles as the tombstone sentinel when equal to
// tombstoneValue).
const kvEntrySize = 8

// tombstoneValue marks a logically deleted key. It is never a valid
// user-supplied value; pkg/kvmap rejects puts carrying it before a batch
// ever reaches this backend.
const tombstoneValue uint32 = 0xFFFFFFFF

// sentinelKey pads a batch to the next power of two for bitonic_sort. It
// sorts to the end of the ascending order and is discarded once raw_len is
// consulted.
const sentinelKey uint32 = 0xFFFFFFFF

type kvEntry struct {
	key   uint32
	value uint32
}

func decodeEntry(buf []byte) kvEntry {
	return kvEntry{
		key:   binary.LittleEndian.Uint32(buf[0:4]),
		value: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

func encodeEntry(e kvEntry, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], e.key)
	binary.LittleEndian.PutUint32(buf[4:8], e.value)
}

func decodeEntries(buf []byte, n int) []kvEntry {
	out := make([]kvEntry, n)
	for i := 0; i < n; i++ {
		out[i] = decodeEntry(buf[i*kvEntrySize : i*kvEntrySize+kvEntrySize])
	}
	return out
}

func encodeEntries(entries []kvEntry, buf []byte) {
	for i, e := range entries {
		encodeEntry(e, buf[i*kvEntrySize:i*kvEntrySize+kvEntrySize])
	}
}

// decodeU32 reads the i-th little-endian u32 out of a flat key/result
// buffer (used for the `keys` binding, 4 bytes per entry).
func decodeU32(buf []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
}

// encodeU32Pair packs a GetResult { value, found } into an 8-byte slot.
func encodeU32Pair(buf []byte, value, found uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], value)
	binary.LittleEndian.PutUint32(buf[4:8], found)
}

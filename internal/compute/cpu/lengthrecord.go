package cpu

import "encoding/binary"

// lengthRecordSize is the 16-byte layout used for raw_len / dedup_len /
// merge_len / slab_len and the RangeBounds record: a little-endian uint32
// length (or, for RangeBounds, start/end) followed by padding to a 16-byte
// stride so every metadata record can be addressed the same way a KvEntry
// array element is.
const lengthRecordSize = 16

func encodeLengthRecord(n int) []byte {
	buf := make([]byte, lengthRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
	return buf
}

func decodeLengthRecord(buf []byte) int {
	return int(binary.LittleEndian.Uint32(buf[0:4]))
}

// encodeRangeBounds packs {start, end} into the same 16-byte stride.
func encodeRangeBounds(start, end int) []byte {
	buf := make([]byte, lengthRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(start))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(end))
	return buf
}

func decodeRangeBounds(buf []byte) (start, end int) {
	start = int(binary.LittleEndian.Uint32(buf[0:4]))
	end = int(binary.LittleEndian.Uint32(buf[4:8]))
	return start, end
}

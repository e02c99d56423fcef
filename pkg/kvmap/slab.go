package kvmap

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// kvEntrySize is the wire size of one KvEntry on the device: a u32 key
// followed by a u32 value, bit-exact with the shader ABI.
const kvEntrySize = 8

// lengthRecordSize is the 16-byte metadata stride shared by every length
// record and the range-bounds record.
const lengthRecordSize = 16

// slabContainer owns the sorted array buffer and its length metadata
// buffer. Host-side writes go through updateLen and write; on the device,
// the bulk_put copy-back and the bulk_delete kernel write the entries
// buffer directly.
type slabContainer struct {
	device   compute.Device
	capacity int
	entries  compute.Buffer // capacity * kvEntrySize bytes
	lenBuf   compute.Buffer // lengthRecordSize bytes
	length   int            // host-cached mirror of lenBuf, kept in sync by updateLen
}

func newSlabContainer(ctx context.Context, device compute.Device, capacity int) (*slabContainer, error) {
	entries, err := device.NewBuffer(capacity*kvEntrySize, compute.UsageStorage|compute.UsageCopySrc|compute.UsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("%w: slab entries buffer: %v", ErrDeviceInit, err)
	}
	lenBuf, err := device.NewBuffer(lengthRecordSize, compute.UsageUniform|compute.UsageStorage|compute.UsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("%w: slab length buffer: %v", ErrDeviceInit, err)
	}
	s := &slabContainer{device: device, capacity: capacity, entries: entries, lenBuf: lenBuf}
	if err := s.updateLen(ctx, 0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *slabContainer) capacityOf() int { return s.capacity }

func (s *slabContainer) lenOf() int { return s.length }

// updateLen sets the slab length to min(n, capacity) and mirrors it into
// the device-visible length record.
func (s *slabContainer) updateLen(_ context.Context, n int) error {
	if n > s.capacity {
		n = s.capacity
	}
	if err := s.device.Write(s.lenBuf, 0, encodeLengthRecord(n)); err != nil {
		return fmt.Errorf("%w: update slab length: %v", ErrDeviceRuntime, err)
	}
	s.length = n
	return nil
}

// write copies data to the start of the entries buffer. A no-op for an
// empty slice.
func (s *slabContainer) write(data []KvEntry) error {
	if len(data) == 0 {
		return nil
	}
	buf := make([]byte, len(data)*kvEntrySize)
	encodeEntries(data, buf)
	if err := s.device.Write(s.entries, 0, buf); err != nil {
		return fmt.Errorf("%w: write slab entries: %v", ErrDeviceRuntime, err)
	}
	return nil
}

// read returns the [0, lenOf()) region of the slab, tombstones included,
// decoded.
func (s *slabContainer) read(ctx context.Context) ([]KvEntry, error) {
	if s.length == 0 {
		return nil, nil
	}
	raw, err := s.device.Read(ctx, s.entries, 0, s.length*kvEntrySize)
	if err != nil {
		return nil, fmt.Errorf("%w: read slab entries: %v", ErrDeviceRuntime, err)
	}
	return decodeEntries(raw), nil
}

func encodeLengthRecord(n int) []byte {
	buf := make([]byte, lengthRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
	return buf
}

func decodeLengthRecord(buf []byte) int {
	return int(binary.LittleEndian.Uint32(buf[0:4]))
}

func decodeRangeBounds(buf []byte) (start, end int) {
	start = int(binary.LittleEndian.Uint32(buf[0:4]))
	end = int(binary.LittleEndian.Uint32(buf[4:8]))
	return start, end
}

func encodeEntries(entries []KvEntry, buf []byte) {
	for i, e := range entries {
		binary.LittleEndian.PutUint32(buf[i*kvEntrySize:i*kvEntrySize+4], e.Key)
		binary.LittleEndian.PutUint32(buf[i*kvEntrySize+4:i*kvEntrySize+8], e.Value)
	}
}

func decodeEntries(buf []byte) []KvEntry {
	n := len(buf) / kvEntrySize
	out := make([]KvEntry, n)
	for i := 0; i < n; i++ {
		out[i] = KvEntry{
			Key:   binary.LittleEndian.Uint32(buf[i*kvEntrySize : i*kvEntrySize+4]),
			Value: binary.LittleEndian.Uint32(buf[i*kvEntrySize+4 : i*kvEntrySize+8]),
		}
	}
	return out
}

func encodeKey(key uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, key)
	return buf
}

func encodeKeys(keys []uint32) []byte {
	buf := make([]byte, len(keys)*4)
	for i, k := range keys {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], k)
	}
	return buf
}

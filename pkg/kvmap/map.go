package kvmap

import (
	"context"
	"fmt"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
	"github.com/KentBeck/GPUSortedMap/internal/compute/cpu"
)

// Map is a batched, sorted, fixed-capacity key/value map whose mutation
// pipeline runs as device compute passes. See the package doc for the
// concurrency and lifecycle contract.
type Map struct {
	device   compute.Device
	capacity int
	closed   bool

	slab *slabContainer

	// input holds the pending batch for BulkPut, sized to the next power
	// of two above capacity so the worst case (an entirely new,
	// full-capacity batch, padded for the bitonic sort) always fits.
	// rawLen/dedupLen/mergeBuf/mergeLen are its companions through the
	// three pipeline stages. The range-scan pass gets its own small
	// persistent records: two key uniforms and one bounds record.
	input       compute.Buffer
	rawLen      compute.Buffer
	dedupLen    compute.Buffer
	mergeBuf    compute.Buffer
	mergeLen    compute.Buffer
	rangeFrom   compute.Buffer
	rangeTo     compute.Buffer
	rangeBounds compute.Buffer

	pipelines map[string]compute.Pipeline

	liveCount int
}

// New constructs a Map with the given capacity, using the built-in
// CPU-simulated compute backend.
func New(capacity int) (*Map, error) {
	return NewWithOptions(Options{Capacity: capacity})
}

// NewWithOptions constructs a Map per opts. A zero Options.Device selects
// the internal CPU-simulated backend (the only one this module ships).
func NewWithOptions(opts Options) (*Map, error) {
	if opts.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be >= 1, got %d", ErrDeviceInit, opts.Capacity)
	}
	device := opts.Device
	if device == nil {
		device = cpu.New()
	}

	ctx := context.Background()
	m := &Map{device: device, capacity: opts.Capacity, pipelines: make(map[string]compute.Pipeline)}

	slab, err := newSlabContainer(ctx, device, opts.Capacity)
	if err != nil {
		return nil, err
	}
	m.slab = slab

	buffers := []struct {
		dst   *compute.Buffer
		size  int
		usage compute.BufferUsage
		name  string
	}{
		{&m.input, nextPow2(opts.Capacity) * kvEntrySize, compute.UsageStorage | compute.UsageCopySrc | compute.UsageCopyDst, "input"},
		{&m.rawLen, lengthRecordSize, compute.UsageUniform | compute.UsageCopyDst, "raw_len"},
		{&m.dedupLen, lengthRecordSize, compute.UsageStorage | compute.UsageUniform | compute.UsageCopyDst, "dedup_len"},
		{&m.mergeBuf, opts.Capacity * kvEntrySize, compute.UsageStorage | compute.UsageCopySrc | compute.UsageCopyDst, "merge"},
		{&m.mergeLen, lengthRecordSize, compute.UsageStorage | compute.UsageCopyDst, "merge_len"},
		{&m.rangeFrom, 4, compute.UsageUniform | compute.UsageCopyDst, "range_from"},
		{&m.rangeTo, 4, compute.UsageUniform | compute.UsageCopyDst, "range_to"},
		{&m.rangeBounds, lengthRecordSize, compute.UsageStorage | compute.UsageCopySrc, "range_bounds"},
	}
	for _, b := range buffers {
		buf, err := device.NewBuffer(b.size, b.usage)
		if err != nil {
			return nil, fmt.Errorf("%w: %s buffer: %v", ErrDeviceInit, b.name, err)
		}
		*b.dst = buf
	}

	for _, entry := range []struct{ name, source string }{
		{"bitonic_sort", cpu.ShaderSortBitonic},
		{"dedup_compact", cpu.ShaderDedupCompact},
		{"merge_monotone", cpu.ShaderMergeMonotone},
		{"bulk_get", cpu.ShaderBulkGet},
		{"bulk_delete", cpu.ShaderBulkDelete},
		{"range_scan", cpu.ShaderRangeScan},
	} {
		p, err := device.NewPipeline(entry.source, entry.name)
		if err != nil {
			return nil, fmt.Errorf("%w: pipeline %s: %v", ErrDeviceInit, entry.name, err)
		}
		m.pipelines[entry.name] = p
	}

	return m, nil
}

// Len returns the live entry count: slab length minus tombstones.
func (m *Map) Len() int { return m.liveCount }

// Capacity returns the fixed configured capacity.
func (m *Map) Capacity() int { return m.capacity }

// IsEmpty reports whether Len() == 0.
func (m *Map) IsEmpty() bool { return m.liveCount == 0 }

// Close releases the map's device resources. The map must not be used
// afterward; every method returns [ErrClosed].
func (m *Map) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.device.Close()
}

func (m *Map) checkOpen() error {
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Map) pipeline(name string) compute.Pipeline {
	p, ok := m.pipelines[name]
	if !ok {
		panic("kvmap: unregistered pipeline " + name)
	}
	return p
}

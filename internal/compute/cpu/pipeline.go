package cpu

import (
	"fmt"
	"sort"
	"sync"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// kernel is this backend's implementation of one shader entry point. It is
// handed the bound buffers directly (no binding-name translation layer is
// needed on a CPU backend) and the workgroup count the host dispatched
// with, purely for parity with the documented ABI; no kernel here uses
// it. bulk_get and bulk_delete fan their own goroutines out internally
// rather than trusting the caller's workgroup count as a hard partition;
// the other kernels run on the calling goroutine.
type kernel func(bindings compute.Bindings, workgroupCount int) error

// kernels maps each shaders/*.wgsl entry_point to its implementation.
var kernels = map[string]kernel{
	"bitonic_sort":   kernelBitonicSort,
	"dedup_compact":  kernelDedupCompact,
	"merge_monotone": kernelMergeMonotone,
	"bulk_get":       kernelBulkGet,
	"bulk_delete":    kernelBulkDelete,
	"range_scan":     kernelRangeScan,
}

type pipeline struct {
	name string
	fn   kernel
}

func (p *pipeline) Name() string { return p.name }

// newPipeline resolves entryPoint against the kernel registry. source is
// accepted but not parsed: it exists so callers can embed the real ABI
// text (see shaders/*.wgsl) the way a real backend would compile it.
func newPipeline(source, entryPoint string) (*pipeline, error) {
	fn, ok := kernels[entryPoint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", compute.ErrUnknownKernel, entryPoint)
	}
	return &pipeline{name: entryPoint, fn: fn}, nil
}

// dispatch is one recorded pass: either a kernel invocation or a buffer
// copy, executed in encoder order at Submit time.
type dispatch struct {
	isCopy bool

	// Dispatch fields.
	pipeline       *pipeline
	bindings       compute.Bindings
	workgroupCount int

	// CopyBuffer fields.
	src, dst             *buffer
	srcOffset, dstOffset int
	size                 int
}

type encoder struct {
	mu  sync.Mutex
	ops []dispatch
}

func newEncoder() *encoder { return &encoder{} }

func (e *encoder) Dispatch(p compute.Pipeline, bindings compute.Bindings, workgroupCount int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, dispatch{
		pipeline:       p.(*pipeline),
		bindings:       bindings,
		workgroupCount: workgroupCount,
	})
}

func (e *encoder) CopyBuffer(src compute.Buffer, srcOffset int, dst compute.Buffer, dstOffset int, size int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = append(e.ops, dispatch{
		isCopy:    true,
		src:       src.(*buffer),
		dst:       dst.(*buffer),
		srcOffset: srcOffset,
		dstOffset: dstOffset,
		size:      size,
	})
}

// run executes all recorded ops in program order. Kernels within one
// dispatch may parallelize internally; ops across dispatches never run
// concurrently, matching the ordering an Encoder promises.
func (e *encoder) run() error {
	for _, op := range e.ops {
		if op.isCopy {
			data, err := op.src.readAt(op.srcOffset, op.size)
			if err != nil {
				return err
			}
			if err := op.dst.writeAt(op.dstOffset, data); err != nil {
				return err
			}
			continue
		}
		if err := op.pipeline.fn(op.bindings, op.workgroupCount); err != nil {
			return fmt.Errorf("%w: %s: %v", compute.ErrSubmitFailed, op.pipeline.name, err)
		}
	}
	return nil
}

// lowerBound returns the first index in entries[0:n] whose key is >= key,
// or n if none. entries must be sorted ascending by key over that range.
func lowerBound(entries []kvEntry, n int, key uint32) int {
	return sort.Search(n, func(i int) bool { return entries[i].key >= key })
}

// nextPow2 returns the smallest power of two >= n (and >= 1).
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

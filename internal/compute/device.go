// Package compute defines the boundary between the batched sorted-map core
// and the generic GPU compute runtime it is dispatched on.
//
// A real implementation of this boundary would wrap an adapter/device
// discovery layer such as wgpu or Vulkan: buffer allocation, shader module
// compilation, pipeline and bind-group creation, command-encoder submission,
// and blocking readback. That plumbing is out of scope here; this package
// only describes the shape of it, narrowly enough that [pkg/kvmap] never
// needs to know which concrete backend it is talking to.
package compute

import "context"

// BufferUsage describes how a [Buffer] may be used by an [Encoder].
//
// Usages are combined with bitwise OR, mirroring the flag sets accepted by
// real GPU buffer-creation APIs.
type BufferUsage uint32

const (
	// UsageStorage marks a buffer as readable/writable by compute pipelines.
	UsageStorage BufferUsage = 1 << iota
	// UsageUniform marks a buffer as a small, read-only uniform binding
	// (used for length/metadata records).
	UsageUniform
	// UsageCopySrc allows the buffer to be the source of a CopyBuffer.
	UsageCopySrc
	// UsageCopyDst allows the buffer to be the destination of a CopyBuffer.
	UsageCopyDst
)

// Has reports whether u includes all bits of other.
func (u BufferUsage) Has(other BufferUsage) bool {
	return u&other == other
}

// Buffer is a device-resident byte-addressable allocation.
//
// Buffer does not itself guarantee visibility of writes issued by a
// pipeline dispatch: callers must go through [Device.Read] (or a
// CopyBuffer followed by Read) to observe device-side writes, exactly as a
// real GPU buffer requires a map-and-fence before host code may inspect it.
type Buffer interface {
	// Size returns the buffer's length in bytes.
	Size() int
	// Usage returns the usage flags the buffer was created with.
	Usage() BufferUsage
}

// Bindings maps a shader's declared binding name to the buffer bound to it
// for one dispatch. Binding names are part of a kernel's ABI and are fixed
// by the shader source the [Pipeline] was compiled from.
type Bindings map[string]Buffer

// Pipeline is a compiled compute kernel, ready to be dispatched through an
// [Encoder]. It corresponds to a GPU compute pipeline object bound to one
// entry point of a shader module.
type Pipeline interface {
	// Name returns the kernel's entry point name, for diagnostics.
	Name() string
}

// Encoder records a sequence of passes (dispatches and buffer copies) that
// execute in the order they were recorded once submitted via
// [Device.Submit]. Passes recorded on the same encoder are guaranteed to
// observe each other's writes in program order, the same guarantee a real
// command encoder gives within one queue submission.
type Encoder interface {
	// Dispatch records a compute pass invoking p over workgroupCount
	// workgroups, reading/writing the buffers named in bindings.
	Dispatch(p Pipeline, bindings Bindings, workgroupCount int)
	// CopyBuffer records a device-to-device copy of size bytes from src
	// (at srcOffset) to dst (at dstOffset). Both buffers must carry the
	// matching CopySrc/CopyDst usage flags.
	CopyBuffer(src Buffer, srcOffset int, dst Buffer, dstOffset int, size int)
}

// Device is the adapter-level handle a batched map is constructed against.
// It owns buffer and pipeline allocation and the single command queue that
// orders all submitted encoders.
type Device interface {
	// NewBuffer allocates a zeroed buffer of size bytes for the given usage.
	NewBuffer(size int, usage BufferUsage) (Buffer, error)
	// NewPipeline compiles source (kernel ABI text) and returns a pipeline
	// bound to entryPoint. Returns [ErrUnknownKernel] if the backend has no
	// implementation of entryPoint.
	NewPipeline(source string, entryPoint string) (Pipeline, error)
	// NewEncoder begins recording a new command encoder.
	NewEncoder() Encoder
	// Submit enqueues enc's recorded passes on the device queue, in order
	// relative to any previously submitted encoder.
	Submit(ctx context.Context, enc Encoder) error
	// Read blocks until all submitted work affecting buf has completed,
	// then returns a copy of length bytes starting at offset.
	Read(ctx context.Context, buf Buffer, offset, length int) ([]byte, error)
	// Write copies data into buf starting at offset. Write is itself
	// ordered like a one-byte-copy pass: a subsequently submitted encoder
	// observes it.
	Write(buf Buffer, offset int, data []byte) error
	// Release frees a buffer ahead of Close. The buffer must not be bound
	// in any encoder submitted afterward.
	Release(buf Buffer) error
	// Close releases all resources owned by the device.
	Close() error
}

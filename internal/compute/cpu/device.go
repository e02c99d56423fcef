package cpu

import (
	"context"
	"sync"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// device is the CPU-simulated [compute.Device]. It serializes Submit calls
// on a single mutex, mirroring the single command queue a real device
// exposes: two encoders never interleave their passes.
type device struct {
	mu      sync.Mutex
	closed  bool
	buffers map[*buffer]struct{}
}

// New returns a [compute.Device] that executes every dispatched kernel on
// the host CPU. It is the only backend this module ships, per the scope
// decision in DESIGN.md: no real GPU adapter is reachable from this repo.
func New() compute.Device {
	return &device{buffers: make(map[*buffer]struct{})}
}

func (d *device) NewBuffer(size int, usage compute.BufferUsage) (compute.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrSubmitFailed
	}
	b, err := newBuffer(size, usage)
	if err != nil {
		return nil, err
	}
	d.buffers[b] = struct{}{}
	return b, nil
}

func (d *device) NewPipeline(source, entryPoint string) (compute.Pipeline, error) {
	return newPipeline(source, entryPoint)
}

func (d *device) NewEncoder() compute.Encoder {
	return newEncoder()
}

func (d *device) Submit(_ context.Context, enc compute.Encoder) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrSubmitFailed
	}
	e, ok := enc.(*encoder)
	if !ok {
		return compute.ErrSubmitFailed
	}
	return e.run()
}

func (d *device) Read(_ context.Context, buf compute.Buffer, offset, length int) ([]byte, error) {
	b, ok := buf.(*buffer)
	if !ok {
		return nil, compute.ErrOutOfRange
	}
	return b.readAt(offset, length)
}

func (d *device) Write(buf compute.Buffer, offset int, data []byte) error {
	b, ok := buf.(*buffer)
	if !ok {
		return compute.ErrOutOfRange
	}
	return b.writeAt(offset, data)
}

func (d *device) Release(buf compute.Buffer) error {
	b, ok := buf.(*buffer)
	if !ok {
		return compute.ErrOutOfRange
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, tracked := d.buffers[b]; !tracked {
		return nil
	}
	delete(d.buffers, b)
	return b.free()
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var firstErr error
	for b := range d.buffers {
		if err := b.free(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

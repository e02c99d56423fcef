package cpu

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/KentBeck/GPUSortedMap/internal/compute"
)

// buffer is a [compute.Buffer] backed by an anonymous mmap region, standing
// in for device-local memory. Using mmap rather than a plain []byte keeps
// the backend honest about the one property that matters for this spec:
// a Buffer is an opaque region the host may only touch through Device.Read
// and Device.Write, never by holding a Go slice across a dispatch.
type buffer struct {
	mem   []byte
	usage compute.BufferUsage
}

func newBuffer(size int, usage compute.BufferUsage) (*buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cpu: buffer size must be positive, got %d", size)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("cpu: mmap: %w", err)
	}
	return &buffer{mem: mem, usage: usage}, nil
}

func (b *buffer) Size() int                  { return len(b.mem) }
func (b *buffer) Usage() compute.BufferUsage { return b.usage }
func (b *buffer) free() error                { return unix.Munmap(b.mem) }

func (b *buffer) readAt(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(b.mem) {
		return nil, compute.ErrOutOfRange
	}
	out := make([]byte, length)
	copy(out, b.mem[offset:offset+length])
	return out, nil
}

func (b *buffer) writeAt(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > len(b.mem) {
		return compute.ErrOutOfRange
	}
	copy(b.mem[offset:], data)
	return nil
}

package kvmap

import (
	"errors"
	"fmt"
)

// Sentinel errors, classified with errors.Is. ErrDeviceInit and
// ErrDeviceRuntime are the two non-recoverable failure classes: after
// either, the map must be considered unusable. ErrClosed reports use of a
// closed map.
var (
	// ErrDeviceInit indicates the compute device could not be acquired or
	// initialized at construction time.
	ErrDeviceInit = errors.New("kvmap: device initialization failed")

	// ErrDeviceRuntime indicates an unexpected command submission or
	// readback failure. It is never returned for validation failures,
	// only for failures of the underlying compute device itself.
	ErrDeviceRuntime = errors.New("kvmap: device runtime failure")

	// ErrClosed is returned by any operation on a Map after Close.
	ErrClosed = errors.New("kvmap: map closed")
)

// CapacityExceededError reports that a batch's net-new unique keys would
// push the slab past its fixed capacity. It is reported before any
// device work is issued; the map's state is unchanged.
type CapacityExceededError struct {
	Capacity  int
	Requested int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("kvmap: capacity exceeded: capacity=%d requested=%d", e.Capacity, e.Requested)
}

// TombstoneReservedError reports that a batch entry's value equals the
// reserved [Tombstone] sentinel.
type TombstoneReservedError struct {
	Value uint32
}

func (e *TombstoneReservedError) Error() string {
	return fmt.Sprintf("kvmap: value %#08x is reserved for tombstones", e.Value)
}

// DuplicateKeyError reports that a single BulkPut batch contains the same
// key twice. The batch is rejected outright; last-write-wins only applies
// across batches, never within one.
type DuplicateKeyError struct {
	Key uint32
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("kvmap: duplicate key %d within batch", e.Key)
}

// deviceRuntimeErr wraps a compute-layer failure as ErrDeviceRuntime,
// keeping the failed operation name in the message.
func deviceRuntimeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDeviceRuntime, op, err)
}

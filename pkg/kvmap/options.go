package kvmap

import "github.com/KentBeck/GPUSortedMap/internal/compute"

// Options configures a [NewWithOptions] call. Capacity is the only required field;
// Device may be left nil to use the built-in CPU-simulated backend.
type Options struct {
	// Capacity is the fixed maximum number of entries (live plus
	// tombstoned) the slab can hold. Must be >= 1. Fixed for the life of
	// the map: there is no resizing.
	Capacity int

	// Device, if non-nil, is the [compute.Device] the map is built on.
	// Left nil, New constructs one via internal/compute/cpu.New, which is
	// the only backend this module ships.
	Device compute.Device
}

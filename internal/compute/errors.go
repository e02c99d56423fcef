package compute

import "errors"

// Error classification for the compute boundary.
//
// These are not the errors [pkg/kvmap] returns to its own callers (see
// kvmap.ErrDeviceInit / kvmap.ErrDeviceRuntime); they are what a [Device]
// implementation returns to kvmap, which wraps them.
var (
	// ErrUnknownKernel is returned by NewPipeline when the backend has no
	// implementation of the requested entry point.
	ErrUnknownKernel = errors.New("compute: unknown kernel entry point")

	// ErrSubmitFailed indicates a backend failed to execute a submitted
	// encoder. Treated as non-recoverable by callers.
	ErrSubmitFailed = errors.New("compute: submit failed")

	// ErrOutOfRange indicates a buffer access fell outside [0, Size()).
	ErrOutOfRange = errors.New("compute: buffer access out of range")
)

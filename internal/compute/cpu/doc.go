// Package cpu implements a [compute.Device] entirely on the host CPU.
//
// It exists so that [pkg/kvmap] can be built and exercised without a real
// GPU adapter: buffers are mmap-backed byte slices (golang.org/x/sys/unix),
// "workgroups" are goroutines, and each kernel entry point named by a
// shaders/*.wgsl ABI file is implemented by a matching Go function in this
// package's kernel registry. The ABI documented in shaders/ is followed
// exactly, so swapping in a real wgpu or Vulkan backend later requires no
// change to pkg/kvmap.
package cpu

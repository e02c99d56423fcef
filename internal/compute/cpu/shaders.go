package cpu

import _ "embed"

// Shader ABI text, embedded verbatim from shaders/*.wgsl. This backend
// never parses or compiles these; NewPipeline only uses the entry point
// name to pick a kernel out of the registry. A real wgpu/Vulkan backend
// would compile this same text instead.
var (
	//go:embed shaders/sort_bitonic.wgsl
	ShaderSortBitonic string

	//go:embed shaders/dedup_compact.wgsl
	ShaderDedupCompact string

	//go:embed shaders/merge_monotone.wgsl
	ShaderMergeMonotone string

	//go:embed shaders/bulk_get.wgsl
	ShaderBulkGet string

	//go:embed shaders/bulk_delete.wgsl
	ShaderBulkDelete string

	//go:embed shaders/range_scan.wgsl
	ShaderRangeScan string
)

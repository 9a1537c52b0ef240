//go:build amd64

package executor

import "golang.org/x/sys/cpu"

// Chunk width of the bulk kernels on amd64: 8 words per iteration when the
// 256-bit vector tier is available, 4 with the 128-bit tier, otherwise
// scalar. The width only affects throughput; results are identical.
var bulkChunkWidth = func() int {
	switch {
	case cpu.X86.HasAVX2:
		return 8
	case cpu.X86.HasSSE2:
		return 4
	default:
		return 1
	}
}()

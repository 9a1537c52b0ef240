//go:build !amd64

package executor

// Scalar fallback on targets without a vector tier.
var bulkChunkWidth = 1

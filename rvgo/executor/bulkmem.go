package executor

// Bulk word-range operations over memory: read, write, copy. The inner
// kernels process fixed-width chunks of words per iteration with a scalar
// remainder loop; the chunk width is picked per target (see bulkmem_amd64.go
// and bulkmem_generic.go). All widths produce bit-identical results, the
// wide tiers are purely a throughput optimization.
//
// Preconditions (not checked here): addr is word-aligned and the whole range
// lies within the addressable space. The executor validates once before
// dispatching; see Executor.checkRange.

// readRunWords extracts values from a record run into dst, processing width
// words per chunk.
func readRunWords(dst []uint32, src []MemoryRecord, width int) {
	chunks := len(dst) / width
	for i := 0; i < chunks; i++ {
		base := i * width
		for j := 0; j < width; j++ {
			dst[base+j] = src[base+j].Value
		}
	}
	for i := chunks * width; i < len(dst); i++ {
		dst[i] = src[i].Value
	}
}

// writeRunWords stores values into a record run, stamping every touched word
// with the shard/timestamp pair, processing width words per chunk.
func writeRunWords(dst []MemoryRecord, src []uint32, shard, timestamp uint32, width int) {
	chunks := len(src) / width
	for i := 0; i < chunks; i++ {
		base := i * width
		for j := 0; j < width; j++ {
			dst[base+j] = MemoryRecord{Value: src[base+j], Shard: shard, Timestamp: timestamp}
		}
	}
	for i := chunks * width; i < len(src); i++ {
		dst[i] = MemoryRecord{Value: src[i], Shard: shard, Timestamp: timestamp}
	}
}

// copyRunWords copies values between record runs, leaving destination
// provenance untouched, processing width words per chunk.
func copyRunWords(dst, src []MemoryRecord, width int) {
	chunks := len(dst) / width
	for i := 0; i < chunks; i++ {
		base := i * width
		for j := 0; j < width; j++ {
			dst[base+j].Value = src[base+j].Value
		}
	}
	for i := chunks * width; i < len(dst); i++ {
		dst[i].Value = src[i].Value
	}
}

// BulkReadWords reads count word values starting at addr. Absent pages read
// as zero words.
func BulkReadWords(m *Memory, addr uint32, count int) []uint32 {
	out := make([]uint32, count)
	dst := out
	wordIndex := addr >> 2
	for len(dst) > 0 {
		run := m.pageRun(wordIndex, len(dst), false)
		if run == nil {
			// absent page: the words are zero, skip to the next page
			n := PageWords - int(wordIndex&PageWordMask)
			if n > len(dst) {
				n = len(dst)
			}
			dst = dst[n:]
			wordIndex += uint32(n)
			continue
		}
		readRunWords(dst[:len(run)], run, bulkChunkWidth)
		dst = dst[len(run):]
		wordIndex += uint32(len(run))
	}
	return out
}

// BulkWriteWords writes values starting at addr and stamps every touched
// word with the shard/timestamp pair, matching the per-word write contract.
func BulkWriteWords(m *Memory, addr uint32, values []uint32, shard, timestamp uint32) {
	src := values
	wordIndex := addr >> 2
	for len(src) > 0 {
		run := m.pageRun(wordIndex, len(src), true)
		writeRunWords(run, src[:len(run)], shard, timestamp, bulkChunkWidth)
		src = src[len(run):]
		wordIndex += uint32(len(run))
	}
}

// BulkCopyWords copies count word values from srcAddr to dstAddr. Only the
// values move; destination shard/timestamp stamps are not modified. The
// ranges must not overlap.
func BulkCopyWords(m *Memory, srcAddr, dstAddr uint32, count int) {
	srcIndex := srcAddr >> 2
	dstIndex := dstAddr >> 2
	remaining := count
	for remaining > 0 {
		srcRun := m.pageRun(srcIndex, remaining, false)
		dstRun := m.pageRun(dstIndex, remaining, true)
		n := len(dstRun)
		if srcRun == nil {
			// absent source page: zero values up to the next source page edge
			sn := PageWords - int(srcIndex&PageWordMask)
			if sn < n {
				n = sn
			}
			for i := 0; i < n; i++ {
				dstRun[i].Value = 0
			}
		} else {
			if len(srcRun) < n {
				n = len(srcRun)
			}
			copyRunWords(dstRun[:n], srcRun[:n], bulkChunkWidth)
		}
		srcIndex += uint32(n)
		dstIndex += uint32(n)
		remaining -= n
	}
}

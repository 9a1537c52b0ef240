package executor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rand"
)

// the widths the per-target selection can pick
var kernelWidths = []int{1, 4, 8}

func randomRecords(rnd *rand.Rand, n int) []MemoryRecord {
	recs := make([]MemoryRecord, n)
	for i := range recs {
		recs[i] = MemoryRecord{Value: rnd.Uint32(), Shard: rnd.Uint32(), Timestamp: rnd.Uint32()}
	}
	return recs
}

func TestKernelWidthsAgree(t *testing.T) {
	rnd := rand.New(0)
	// lengths around the chunk boundaries, including remainders
	lengths := []int{0, 1, 3, 4, 7, 8, 9, 15, 16, 17, 63, 100}

	for _, n := range lengths {
		t.Run(fmt.Sprintf("len %d", n), func(t *testing.T) {
			src := randomRecords(rnd, n)
			values := make([]uint32, n)
			for i := range values {
				values[i] = rnd.Uint32()
			}

			var wantRead []uint32
			var wantWrite, wantCopy []MemoryRecord
			for i, width := range kernelWidths {
				gotRead := make([]uint32, n)
				readRunWords(gotRead, src, width)

				gotWrite := randomRecords(rnd, n) // garbage, fully overwritten
				writeRunWords(gotWrite, values, 7, 13, width)

				gotCopy := randomRecords(rnd, n)
				for j := range gotCopy {
					gotCopy[j].Shard, gotCopy[j].Timestamp = 1, uint32(j)
				}
				copyRunWords(gotCopy, src, width)

				if i == 0 {
					wantRead, wantWrite, wantCopy = gotRead, gotWrite, gotCopy
					continue
				}
				require.Equal(t, wantRead, gotRead, "read width %d", width)
				require.Equal(t, wantWrite, gotWrite, "write width %d", width)
				require.Equal(t, wantCopy, gotCopy, "copy width %d", width)
			}

			for i := range wantRead {
				require.Equal(t, src[i].Value, wantRead[i])
			}
			for i := range wantWrite {
				require.Equal(t, MemoryRecord{Value: values[i], Shard: 7, Timestamp: 13}, wantWrite[i])
			}
			for i := range wantCopy {
				require.Equal(t, src[i].Value, wantCopy[i].Value)
				require.Equal(t, uint32(1), wantCopy[i].Shard, "copy must preserve destination stamps")
				require.Equal(t, uint32(i), wantCopy[i].Timestamp)
			}
		})
	}
}

func TestBulkAgainstScalar(t *testing.T) {
	rnd := rand.New(1)

	// populate a memory with scattered runs, leaving page gaps
	m := NewMemory()
	for i := 0; i < 16; i++ {
		addr := (rnd.Uint32() % (64 * PageWords)) * 4
		n := int(rnd.Uint32()%200) + 1
		values := make([]uint32, n)
		for j := range values {
			values[j] = rnd.Uint32()
		}
		BulkWriteWords(m, addr, values, 1, uint32(i))
	}

	t.Run("read matches per-word reads", func(t *testing.T) {
		for i := 0; i < 32; i++ {
			addr := (rnd.Uint32() % (64 * PageWords)) * 4
			n := int(rnd.Uint32() % (2*PageWords + 5))
			got := BulkReadWords(m, addr, n)
			require.Len(t, got, n)
			for j := 0; j < n; j++ {
				require.Equal(t, m.ReadWord(addr+uint32(j)*4), got[j], "addr %08x word %d", addr, j)
			}
		}
	})

	t.Run("write matches per-word writes", func(t *testing.T) {
		n := 2*PageWords + 37
		values := make([]uint32, n)
		for i := range values {
			values[i] = rnd.Uint32()
		}
		addr := uint32(70*PageWords*4) - 40 // crosses two page boundaries

		bulk := NewMemory()
		BulkWriteWords(bulk, addr, values, 3, 21)
		scalar := NewMemory()
		for i, v := range values {
			scalar.WriteWord(addr+uint32(i)*4, v, 3, 21)
		}
		for i := 0; i < n; i++ {
			a := addr + uint32(i)*4
			want, _ := scalar.Lookup(a)
			got, ok := bulk.Lookup(a)
			require.True(t, ok)
			require.Equal(t, want, got)
		}
	})

	t.Run("copy matches per-word copy", func(t *testing.T) {
		src := (rnd.Uint32() % (32 * PageWords)) * 4
		dst := src + uint32(40*PageWords*4) // disjoint
		n := PageWords + 11
		BulkCopyWords(m, src, dst, n)
		for i := 0; i < n; i++ {
			require.Equal(t, m.ReadWord(src+uint32(i)*4), m.ReadWord(dst+uint32(i)*4))
		}
	})

	t.Run("copy from absent source zero fills", func(t *testing.T) {
		m := NewMemory()
		m.WriteRange(0x1000, []uint32{1, 2, 3}, 5, 5) // pre-existing destination values
		BulkCopyWords(m, 90*PageWords*4, 0x1000, 3)   // source pages were never written
		for i := uint32(0); i < 3; i++ {
			rec, ok := m.Lookup(0x1000 + i*4)
			require.True(t, ok)
			require.Equal(t, uint32(0), rec.Value)
			require.Equal(t, uint32(5), rec.Shard)
		}
	})
}

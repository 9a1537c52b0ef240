package executor

import (
	"encoding/binary"
	"fmt"
)

// hintLenSyscall returns the byte length of the input buffer at the input
// stream cursor, so the guest can size the following hint_read.
type hintLenSyscall struct{}

func (*hintLenSyscall) Execute(ctx *SyscallContext, _ SyscallCode, _, _ uint32) (uint32, bool, error) {
	s := ctx.Exec.State
	if s.InputStreamPtr >= len(s.InputStream) {
		return 0, false, fmt.Errorf("no input: hint_len called with input stream exhausted (%d buffers consumed)", s.InputStreamPtr)
	}
	return uint32(len(s.InputStream[s.InputStreamPtr])), true, nil
}

func (*hintLenSyscall) NumExtraCycles() uint32 { return 0 }

// hintReadSyscall copies the input buffer at the cursor into guest memory at
// arg1 (word aligned) and advances the cursor. The data lands in the
// uninitialized-memory seed table rather than as tracked writes: the words
// materialize with the seeded value on the guest's first read, so host data
// injection does not perturb the access trace. The target region must be
// untouched memory.
type hintReadSyscall struct{}

func (*hintReadSyscall) Execute(ctx *SyscallContext, _ SyscallCode, ptr, count uint32) (uint32, bool, error) {
	s := ctx.Exec.State
	if s.InputStreamPtr >= len(s.InputStream) {
		return 0, false, fmt.Errorf("no input: hint_read called with input stream exhausted (%d buffers consumed)", s.InputStreamPtr)
	}
	buf := s.InputStream[s.InputStreamPtr]
	if uint32(len(buf)) != count {
		return 0, false, fmt.Errorf("hint_read expects the buffer length %d, got %d (guest must call hint_len first)", len(buf), count)
	}
	if ptr&3 != 0 {
		return 0, false, fmt.Errorf("hint_read target %08x is not word-aligned", ptr)
	}
	if err := ctx.Exec.checkRange(ptr, int(count+3)/4); err != nil {
		return 0, false, err
	}
	for i := 0; i < len(buf); i += 4 {
		addr := ptr + uint32(i)
		if _, seeded := s.UninitializedMemory[addr]; seeded {
			return 0, false, fmt.Errorf("hint_read target word %08x already has a pending seed", addr)
		}
		if rec, ok := s.Memory.Lookup(addr); ok && (rec.Value != 0 || !rec.Untouched()) {
			return 0, false, fmt.Errorf("hint_read target word %08x is not untouched memory", addr)
		}
		// last word may be partial; the tail bytes seed as zero
		var word [4]byte
		copy(word[:], buf[i:])
		s.UninitializedMemory[addr] = binary.LittleEndian.Uint32(word[:])
	}
	s.InputStreamPtr++
	return 0, false, nil
}

func (*hintReadSyscall) NumExtraCycles() uint32 { return 0 }

package executor

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ExecutionState is the single mutable context of one run: program counter,
// clocks, memory, registers, the host I/O streams and per-syscall counters.
// It is owned by exactly one Executor and never shared across runs.
type ExecutionState struct {
	// PC is the address of the next instruction.
	PC uint32 `json:"pc"`

	// CurrentShard starts at 1; shard 0 is reserved for memory
	// initialization. It increments when a shard boundary is crossed.
	CurrentShard uint32 `json:"currentShard"`

	// Clk is the intra-shard clock. It advances by the configured step per
	// instruction (more for syscalls with extra cost) and resets at shard
	// boundaries.
	Clk uint32 `json:"clk"`

	// GlobalClk counts cycles across the whole run and never resets. It is
	// the cross-shard ordering key and the throughput measure.
	GlobalClk uint64 `json:"globalClk"`

	// Memory holds the per-word value + provenance records.
	Memory *Memory `json:"memory"`

	// Registers is the architectural register file.
	Registers RegisterFile `json:"registers"`

	// UninitializedMemory maps addresses to the value they materialize on
	// first read instead of zero. The hint-read syscall fills it to inject
	// host data into the guest.
	UninitializedMemory map[uint32]uint32 `json:"uninitializedMemory"`

	// InputStream is the host-provided input, consumed front to back by the
	// hint syscalls.
	InputStream    [][]byte `json:"inputStream"`
	InputStreamPtr int      `json:"inputStreamPtr"`

	// PublicValuesStream accumulates the guest's committed output bytes.
	PublicValuesStream    []byte `json:"publicValuesStream"`
	PublicValuesStreamPtr int    `json:"publicValuesStreamPtr"`

	// ProofStreamPtr is the cursor into the externally supplied sequence of
	// verified-proof claims, advanced by the verify syscall.
	ProofStreamPtr int `json:"proofStreamPtr"`

	// SyscallCounts tracks how many times each syscall code was dispatched.
	SyscallCounts map[SyscallCode]uint64 `json:"syscallCounts"`
}

// NewExecutionState creates the state of a fresh run starting at pcStart.
func NewExecutionState(pcStart uint32) *ExecutionState {
	return &ExecutionState{
		PC:                  pcStart,
		CurrentShard:        1,
		Memory:              NewMemory(),
		UninitializedMemory: make(map[uint32]uint32),
		SyscallCounts:       make(map[SyscallCode]uint64),
	}
}

// ReadPublicValuesSlice copies exactly len(buf) bytes of the public values
// stream starting at the stream pointer and advances the pointer. Fewer
// available bytes than requested is a stream underrun.
func (s *ExecutionState) ReadPublicValuesSlice(buf []byte) error {
	if s.PublicValuesStreamPtr+len(buf) > len(s.PublicValuesStream) {
		return &ExecutionError{
			Kind:      FaultStreamUnderrun,
			PC:        s.PC,
			GlobalClk: s.GlobalClk,
			Err: fmt.Errorf("public values stream has %d bytes left, requested %d",
				len(s.PublicValuesStream)-s.PublicValuesStreamPtr, len(buf)),
		}
	}
	copy(buf, s.PublicValuesStream[s.PublicValuesStreamPtr:])
	s.PublicValuesStreamPtr += len(buf)
	return nil
}

// Save serializes the full state to w through a buffered writer. This is the
// heavyweight persistence path (fork/restore is the cheap one); if it fails
// partway the output is invalid and must be redone, the in-memory state is
// unaffected.
func (s *ExecutionState) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := s.Serialize(bw); err != nil {
		return &ExecutionError{Kind: FaultSerialization, PC: s.PC, GlobalClk: s.GlobalClk, Err: err}
	}
	if err := bw.Flush(); err != nil {
		return &ExecutionError{Kind: FaultSerialization, PC: s.PC, GlobalClk: s.GlobalClk, Err: err}
	}
	return nil
}

// Serialize writes the state in a simple binary format which can be read
// again using Deserialize: big-endian numbers, item counts prefixing
// repeating items. Self-consistent within one build only; there is no
// cross-version format contract.
func (s *ExecutionState) Serialize(out io.Writer) error {
	write := func(v any) error { return binary.Write(out, binary.BigEndian, v) }
	if err := write(s.PC); err != nil {
		return err
	}
	if err := write(s.CurrentShard); err != nil {
		return err
	}
	if err := write(s.Clk); err != nil {
		return err
	}
	if err := write(s.GlobalClk); err != nil {
		return err
	}
	if err := write(&s.Registers); err != nil {
		return err
	}
	if err := write(uint64(len(s.UninitializedMemory))); err != nil {
		return err
	}
	for addr, value := range s.UninitializedMemory {
		if err := write(addr); err != nil {
			return err
		}
		if err := write(value); err != nil {
			return err
		}
	}
	if err := write(uint64(len(s.InputStream))); err != nil {
		return err
	}
	for _, buf := range s.InputStream {
		if err := write(uint64(len(buf))); err != nil {
			return err
		}
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	if err := write(uint64(s.InputStreamPtr)); err != nil {
		return err
	}
	if err := write(uint64(len(s.PublicValuesStream))); err != nil {
		return err
	}
	if _, err := out.Write(s.PublicValuesStream); err != nil {
		return err
	}
	if err := write(uint64(s.PublicValuesStreamPtr)); err != nil {
		return err
	}
	if err := write(uint64(s.ProofStreamPtr)); err != nil {
		return err
	}
	if err := write(uint64(len(s.SyscallCounts))); err != nil {
		return err
	}
	for code, count := range s.SyscallCounts {
		if err := write(uint32(code)); err != nil {
			return err
		}
		if err := write(count); err != nil {
			return err
		}
	}
	return s.Memory.Serialize(out)
}

// Deserialize reads a state previously written by Serialize.
func (s *ExecutionState) Deserialize(in io.Reader) error {
	read := func(v any) error { return binary.Read(in, binary.BigEndian, v) }
	if err := read(&s.PC); err != nil {
		return err
	}
	if err := read(&s.CurrentShard); err != nil {
		return err
	}
	if err := read(&s.Clk); err != nil {
		return err
	}
	if err := read(&s.GlobalClk); err != nil {
		return err
	}
	if err := read(&s.Registers); err != nil {
		return err
	}
	var count uint64
	if err := read(&count); err != nil {
		return err
	}
	s.UninitializedMemory = make(map[uint32]uint32, count)
	for i := uint64(0); i < count; i++ {
		var addr, value uint32
		if err := read(&addr); err != nil {
			return err
		}
		if err := read(&value); err != nil {
			return err
		}
		s.UninitializedMemory[addr] = value
	}
	if err := read(&count); err != nil {
		return err
	}
	s.InputStream = make([][]byte, count)
	for i := range s.InputStream {
		var size uint64
		if err := read(&size); err != nil {
			return err
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(in, buf); err != nil {
			return err
		}
		s.InputStream[i] = buf
	}
	var ptr uint64
	if err := read(&ptr); err != nil {
		return err
	}
	s.InputStreamPtr = int(ptr)
	if err := read(&count); err != nil {
		return err
	}
	s.PublicValuesStream = make([]byte, count)
	if _, err := io.ReadFull(in, s.PublicValuesStream); err != nil {
		return err
	}
	if err := read(&ptr); err != nil {
		return err
	}
	s.PublicValuesStreamPtr = int(ptr)
	if err := read(&ptr); err != nil {
		return err
	}
	s.ProofStreamPtr = int(ptr)
	if err := read(&count); err != nil {
		return err
	}
	s.SyscallCounts = make(map[SyscallCode]uint64, count)
	for i := uint64(0); i < count; i++ {
		var code uint32
		var n uint64
		if err := read(&code); err != nil {
			return err
		}
		if err := read(&n); err != nil {
			return err
		}
		s.SyscallCounts[SyscallCode(code)] = n
	}
	s.Memory = NewMemory()
	return s.Memory.Deserialize(in)
}

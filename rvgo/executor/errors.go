package executor

import (
	"errors"
	"fmt"
)

// FaultKind classifies terminal execution failures. A fault is a permanent,
// reproducible property of a (program, input) pair: none are retried and
// there is no recovered state past one.
type FaultKind uint8

const (
	// FaultDecode: instruction bits do not map to a supported operation.
	FaultDecode FaultKind = iota + 1
	// FaultMemory: address outside the addressable range, or misaligned
	// where alignment is required.
	FaultMemory
	// FaultSyscall: unknown syscall code, or a known syscall's precondition
	// unmet.
	FaultSyscall
	// FaultStreamUnderrun: read of the public values or proof stream beyond
	// the available data. A host/guest contract violation, not a CPU error.
	FaultStreamUnderrun
	// FaultSerialization: state save/restore I/O failure. Does not corrupt
	// the in-memory state.
	FaultSerialization
)

func (k FaultKind) String() string {
	switch k {
	case FaultDecode:
		return "decode fault"
	case FaultMemory:
		return "memory fault"
	case FaultSyscall:
		return "syscall fault"
	case FaultStreamUnderrun:
		return "stream underrun"
	case FaultSerialization:
		return "serialization failure"
	default:
		return fmt.Sprintf("unknown fault %d", uint8(k))
	}
}

// ExecutionError is the typed failure surfaced when a run stops: the fault
// kind plus the pc and global clock at which it occurred.
type ExecutionError struct {
	Kind      FaultKind
	PC        uint32
	GlobalClk uint64
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s at pc=%08x global_clk=%d: %v", e.Kind, e.PC, e.GlobalClk, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsFault reports whether err is an ExecutionError of the given kind.
func IsFault(err error, kind FaultKind) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Kind == kind
}

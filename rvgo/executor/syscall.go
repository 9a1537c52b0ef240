package executor

import "fmt"

// SyscallCode identifies a syscall, passed by the guest in register t0.
type SyscallCode uint32

const (
	// SyscallHalt stops the run; the exit code is in arg1.
	SyscallHalt SyscallCode = 0x00
	// SyscallWrite writes guest bytes to a host file descriptor.
	SyscallWrite SyscallCode = 0x02
	// SyscallEnterUnconstrained opens a speculative window: memory writes
	// are recorded so they can be rolled back.
	SyscallEnterUnconstrained SyscallCode = 0x03
	// SyscallExitUnconstrained rolls back to the matching enter.
	SyscallExitUnconstrained SyscallCode = 0x04
	// SyscallCommit appends the guest's declared output region to the
	// public values stream.
	SyscallCommit SyscallCode = 0x10
	// SyscallCommitDeferred records one word of the deferred proofs digest.
	SyscallCommitDeferred SyscallCode = 0x1A
	// SyscallVerify consumes one entry of the proof stream.
	SyscallVerify SyscallCode = 0x1B
	// SyscallHintLen returns the length of the next input buffer.
	SyscallHintLen SyscallCode = 0xF0
	// SyscallHintRead seeds the next input buffer into guest memory.
	SyscallHintRead SyscallCode = 0xF1
)

func (c SyscallCode) String() string {
	switch c {
	case SyscallHalt:
		return "halt"
	case SyscallWrite:
		return "write"
	case SyscallEnterUnconstrained:
		return "enter_unconstrained"
	case SyscallExitUnconstrained:
		return "exit_unconstrained"
	case SyscallCommit:
		return "commit"
	case SyscallCommitDeferred:
		return "commit_deferred"
	case SyscallVerify:
		return "verify"
	case SyscallHintLen:
		return "hint_len"
	case SyscallHintRead:
		return "hint_read"
	default:
		return fmt.Sprintf("syscall(%#x)", uint32(c))
	}
}

// Syscall is one capability-scoped handler. Execute returns the value to
// write back into a0 (ret=true) or no value (ret=false); an error is a
// terminal syscall fault. Handlers mutate execution state only through the
// context.
type Syscall interface {
	Execute(ctx *SyscallContext, code SyscallCode, arg1, arg2 uint32) (result uint32, ret bool, err error)
	// NumExtraCycles is the clock cost of the syscall on top of the regular
	// per-instruction step.
	NumExtraCycles() uint32
}

// SyscallContext is the mutable view a handler gets of the run: the executor
// plus the control-flow slots a handler may override.
type SyscallContext struct {
	Exec *Executor
	// InstrPC is the address of the ecall instruction being dispatched.
	InstrPC uint32
	// NextPC is where execution continues after the ecall; handlers that
	// redirect control flow overwrite it.
	NextPC uint32
}

// Word performs a tracked word read at addr on behalf of the guest.
func (c *SyscallContext) Word(addr uint32) (uint32, error) {
	return c.Exec.mr(addr)
}

// SetWord performs a tracked word write at addr on behalf of the guest.
func (c *SyscallContext) SetWord(addr uint32, value uint32) error {
	return c.Exec.mw(addr, value)
}

// Register reads a register through the tracked path.
func (c *SyscallContext) Register(reg uint32) uint32 {
	return c.Exec.rr(reg)
}

// ReadBytes copies count guest bytes starting at addr, composing tracked
// word reads. addr need not be aligned.
func (c *SyscallContext) ReadBytes(addr uint32, count uint32) ([]byte, error) {
	out := make([]byte, 0, count)
	for i := uint32(0); i < count; {
		wordAddr := (addr + i) &^ 3
		word, err := c.Exec.mr(wordAddr)
		if err != nil {
			return nil, err
		}
		for off := (addr + i) & 3; off < 4 && i < count; off, i = off+1, i+1 {
			out = append(out, byte(word>>(off*8)))
		}
	}
	return out, nil
}

// ReadWords reads count words starting at the word-aligned addr through the
// validated bulk path.
func (c *SyscallContext) ReadWords(addr uint32, count int) ([]uint32, error) {
	if err := c.Exec.checkRange(addr, count); err != nil {
		return nil, err
	}
	return BulkReadWords(c.Exec.State.Memory, addr, count), nil
}

// defaultSyscallTable builds the capability table once at engine
// construction; there is no dynamic registration.
func defaultSyscallTable() map[SyscallCode]Syscall {
	return map[SyscallCode]Syscall{
		SyscallHalt:               &haltSyscall{},
		SyscallWrite:              &writeSyscall{},
		SyscallEnterUnconstrained: &enterUnconstrainedSyscall{},
		SyscallExitUnconstrained:  &exitUnconstrainedSyscall{},
		SyscallCommit:             &commitSyscall{},
		SyscallCommitDeferred:     &commitDeferredSyscall{},
		SyscallVerify:             &verifySyscall{},
		SyscallHintLen:            &hintLenSyscall{},
		SyscallHintRead:           &hintReadSyscall{},
	}
}

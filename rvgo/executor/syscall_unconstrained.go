package executor

import "errors"

// enterUnconstrainedSyscall opens a speculative window: it forks the run so
// that every memory write until the matching exit can be rolled back. Trace
// emission is suspended for the window (the speculative work never reaches
// the proof). Returns 1 so the guest can tell the speculative pass apart
// from the resumed one. Windows do not nest.
type enterUnconstrainedSyscall struct{}

func (*enterUnconstrainedSyscall) Execute(ctx *SyscallContext, _ SyscallCode, _, _ uint32) (uint32, bool, error) {
	e := ctx.Exec
	if e.forkState != nil {
		return 0, false, errors.New("unconstrained windows cannot nest")
	}
	e.forkState = e.Fork()
	e.mode = ModeSimple
	return 1, true, nil
}

func (*enterUnconstrainedSyscall) NumExtraCycles() uint32 { return 0 }

// exitUnconstrainedSyscall closes the speculative window: memory is rolled
// back to the fork point, the clocks are reset to their fork values, and
// execution resumes right after the matching enter with 0 in a0. Register
// state is not rolled back; the guest must treat registers as clobbered
// across the window.
type exitUnconstrainedSyscall struct{}

func (*exitUnconstrainedSyscall) Execute(ctx *SyscallContext, _ SyscallCode, _, _ uint32) (uint32, bool, error) {
	e := ctx.Exec
	fs := e.forkState
	if fs == nil {
		return 0, false, errors.New("exit_unconstrained without a matching enter")
	}
	e.forkState = nil
	e.Restore(fs)
	ctx.NextPC = fs.PC + 4
	return 0, true, nil
}

func (*exitUnconstrainedSyscall) NumExtraCycles() uint32 { return 0 }

package executor

// haltSyscall terminates the run with the exit code in arg1.
type haltSyscall struct{}

func (*haltSyscall) Execute(ctx *SyscallContext, _ SyscallCode, exitCode, _ uint32) (uint32, bool, error) {
	ctx.Exec.halt(exitCode)
	return 0, false, nil
}

func (*haltSyscall) NumExtraCycles() uint32 { return 0 }

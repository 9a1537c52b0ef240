package executor

import "fmt"

// fdPublicValues is the virtual descriptor whose writes append to the
// public values stream, an alternative to the commit syscall for guest
// runtimes that stream their output.
const fdPublicValues = 13

// writeSyscall streams guest bytes to a host file descriptor: fd 1 and 2 map
// to the executor's stdout/stderr writers, fd 13 to the public values
// stream. Other descriptors are accepted and their bytes dropped. arg1 is
// the fd, arg2 the buffer address; the byte count rides
// in a2 per the calling convention.
type writeSyscall struct{}

func (*writeSyscall) Execute(ctx *SyscallContext, _ SyscallCode, fd, addr uint32) (uint32, bool, error) {
	count := ctx.Register(RegA2)
	b, err := ctx.ReadBytes(addr, count)
	if err != nil {
		return 0, false, err
	}
	switch fd {
	case 1:
		if _, err := ctx.Exec.Stdout.Write(b); err != nil {
			return 0, false, fmt.Errorf("stdout writing err: %w", err)
		}
	case 2:
		if _, err := ctx.Exec.Stderr.Write(b); err != nil {
			return 0, false, fmt.Errorf("stderr writing err: %w", err)
		}
	case fdPublicValues:
		s := ctx.Exec.State
		s.PublicValuesStream = append(s.PublicValuesStream, b...)
	default:
		// other fds are sinks
	}
	return count, true, nil
}

func (*writeSyscall) NumExtraCycles() uint32 { return 0 }

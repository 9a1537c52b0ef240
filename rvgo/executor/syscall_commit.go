package executor

import "fmt"

// commitSyscall appends the guest's declared output region (arg1 = address,
// arg2 = byte count) to the public values stream. This is how the guest
// finalizes its public outputs.
type commitSyscall struct{}

func (*commitSyscall) Execute(ctx *SyscallContext, _ SyscallCode, addr, count uint32) (uint32, bool, error) {
	b, err := ctx.ReadBytes(addr, count)
	if err != nil {
		return 0, false, err
	}
	s := ctx.Exec.State
	s.PublicValuesStream = append(s.PublicValuesStream, b...)
	return 0, false, nil
}

func (*commitSyscall) NumExtraCycles() uint32 { return 0 }

// commitDeferredSyscall records one 32-bit word of the deferred proofs
// digest (arg1 = word index, arg2 = word value). The digest is checked by a
// separate deferred-proof mechanism downstream.
type commitDeferredSyscall struct{}

func (*commitDeferredSyscall) Execute(ctx *SyscallContext, _ SyscallCode, wordIdx, word uint32) (uint32, bool, error) {
	if wordIdx >= uint32(len(ctx.Exec.DeferredProofsDigest)) {
		return 0, false, fmt.Errorf("deferred proofs digest word index out of range: %d", wordIdx)
	}
	ctx.Exec.DeferredProofsDigest[wordIdx] = word
	return 0, false, nil
}

func (*commitDeferredSyscall) NumExtraCycles() uint32 { return 0 }

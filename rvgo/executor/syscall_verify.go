package executor

import (
	"encoding/binary"
	"fmt"
)

// ProofClaim is one externally verified proof statement supplied to the run
// before it starts: the verifying key digest and the public values digest of
// the claimed execution. The actual proof verification happened upstream;
// the engine only enforces the consumption protocol.
type ProofClaim struct {
	VKeyDigest         [32]byte `json:"vkeyDigest"`
	PublicValuesDigest [32]byte `json:"publicValuesDigest"`
}

// verifySyscall consumes one proof stream entry: arg1 points at the 8-word
// verifying key digest the guest claims, arg2 at the 8-word public values
// digest. The claim must match the stream entry at the cursor exactly; one
// proof is consumed per call.
type verifySyscall struct{}

func (*verifySyscall) Execute(ctx *SyscallContext, _ SyscallCode, vkPtr, pvPtr uint32) (uint32, bool, error) {
	e := ctx.Exec
	s := e.State
	if s.ProofStreamPtr >= len(e.ProofStream) {
		return 0, false, &ExecutionError{
			Kind:      FaultStreamUnderrun,
			PC:        ctx.InstrPC,
			GlobalClk: s.GlobalClk,
			Err:       fmt.Errorf("proof stream exhausted after %d proofs", len(e.ProofStream)),
		}
	}
	claim := e.ProofStream[s.ProofStreamPtr]
	vk, err := readDigest(ctx, vkPtr)
	if err != nil {
		return 0, false, err
	}
	pv, err := readDigest(ctx, pvPtr)
	if err != nil {
		return 0, false, err
	}
	if vk != claim.VKeyDigest || pv != claim.PublicValuesDigest {
		return 0, false, fmt.Errorf("proof %d does not match the claimed statement", s.ProofStreamPtr)
	}
	s.ProofStreamPtr++
	return 0, false, nil
}

func (*verifySyscall) NumExtraCycles() uint32 { return 0 }

func readDigest(ctx *SyscallContext, addr uint32) ([32]byte, error) {
	var out [32]byte
	if addr&3 != 0 {
		return out, fmt.Errorf("misaligned digest address %08x", addr)
	}
	words, err := ctx.ReadWords(addr, 8)
	if err != nil {
		return out, err
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out, nil
}

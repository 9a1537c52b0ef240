package executor

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSyscallContext(t *testing.T) *SyscallContext {
	t.Helper()
	e := newTestExecutor(t, []uint32{ecall()}, defaultTestConfig())
	return &SyscallContext{Exec: e, InstrPC: testPCBase, NextPC: testPCBase + 4}
}

func TestWriteSyscall(t *testing.T) {
	seedBytes := func(ctx *SyscallContext, addr uint32, b []byte) {
		for i := 0; i < len(b); i += 4 {
			var word [4]byte
			copy(word[:], b[i:])
			require.NoError(t, ctx.SetWord(addr+uint32(i), binary.LittleEndian.Uint32(word[:])))
		}
	}

	t.Run("fd 1 reaches stdout", func(t *testing.T) {
		ctx := testSyscallContext(t)
		var out bytes.Buffer
		ctx.Exec.Stdout = &out
		msg := []byte("hello from the guest")
		seedBytes(ctx, 0x2000, msg)
		ctx.Exec.State.Registers.Set(RegA2, MemoryRecord{Value: uint32(len(msg))})

		result, ret, err := (&writeSyscall{}).Execute(ctx, SyscallWrite, 1, 0x2000)
		require.NoError(t, err)
		require.True(t, ret)
		require.Equal(t, uint32(len(msg)), result)
		require.Equal(t, msg, out.Bytes())
	})
	t.Run("fd 2 reaches stderr", func(t *testing.T) {
		ctx := testSyscallContext(t)
		var out bytes.Buffer
		ctx.Exec.Stderr = &out
		seedBytes(ctx, 0x2000, []byte("oops"))
		ctx.Exec.State.Registers.Set(RegA2, MemoryRecord{Value: 4})

		_, _, err := (&writeSyscall{}).Execute(ctx, SyscallWrite, 2, 0x2000)
		require.NoError(t, err)
		require.Equal(t, "oops", out.String())
	})
	t.Run("fd 13 appends to the public values stream", func(t *testing.T) {
		ctx := testSyscallContext(t)
		seedBytes(ctx, 0x2000, []byte{9, 8, 7, 6})
		ctx.Exec.State.Registers.Set(RegA2, MemoryRecord{Value: 4})

		_, _, err := (&writeSyscall{}).Execute(ctx, SyscallWrite, fdPublicValues, 0x2000)
		require.NoError(t, err)
		require.Equal(t, []byte{9, 8, 7, 6}, ctx.Exec.State.PublicValuesStream)
	})
	t.Run("other fds are sinks", func(t *testing.T) {
		ctx := testSyscallContext(t)
		seedBytes(ctx, 0x2000, []byte("drop"))
		ctx.Exec.State.Registers.Set(RegA2, MemoryRecord{Value: 4})

		result, ret, err := (&writeSyscall{}).Execute(ctx, SyscallWrite, 7, 0x2000)
		require.NoError(t, err)
		require.True(t, ret)
		require.Equal(t, uint32(4), result)
	})
	t.Run("unaligned buffer address", func(t *testing.T) {
		ctx := testSyscallContext(t)
		seedBytes(ctx, 0x2000, []byte("unaligned read"))
		ctx.Exec.State.Registers.Set(RegA2, MemoryRecord{Value: 5})

		var out bytes.Buffer
		ctx.Exec.Stdout = &out
		_, _, err := (&writeSyscall{}).Execute(ctx, SyscallWrite, 1, 0x2001)
		require.NoError(t, err)
		require.Equal(t, "nalig", out.String())
	})
}

func TestCommitSyscall(t *testing.T) {
	ctx := testSyscallContext(t)
	require.NoError(t, ctx.SetWord(0x2000, 0x04030201))
	require.NoError(t, ctx.SetWord(0x2004, 0x08070605))

	_, _, err := (&commitSyscall{}).Execute(ctx, SyscallCommit, 0x2000, 6)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, ctx.Exec.State.PublicValuesStream)

	// commits append
	_, _, err = (&commitSyscall{}).Execute(ctx, SyscallCommit, 0x2004, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 5, 6}, ctx.Exec.State.PublicValuesStream)
}

func TestCommitDeferredSyscall(t *testing.T) {
	ctx := testSyscallContext(t)
	for i := uint32(0); i < 8; i++ {
		_, _, err := (&commitDeferredSyscall{}).Execute(ctx, SyscallCommitDeferred, i, 100+i)
		require.NoError(t, err)
	}
	require.Equal(t, [8]uint32{100, 101, 102, 103, 104, 105, 106, 107}, ctx.Exec.DeferredProofsDigest)

	_, _, err := (&commitDeferredSyscall{}).Execute(ctx, SyscallCommitDeferred, 8, 1)
	require.ErrorContains(t, err, "out of range")
}

func TestVerifySyscall(t *testing.T) {
	var vkey, pv [32]byte
	for i := range vkey {
		vkey[i] = byte(i)
		pv[i] = byte(0x80 + i)
	}
	writeDigest := func(ctx *SyscallContext, addr uint32, d [32]byte) {
		for i := 0; i < 8; i++ {
			require.NoError(t, ctx.SetWord(addr+uint32(i)*4, binary.LittleEndian.Uint32(d[i*4:])))
		}
	}

	t.Run("matching claim is consumed", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.WriteProof(ProofClaim{VKeyDigest: vkey, PublicValuesDigest: pv})
		writeDigest(ctx, 0x2000, vkey)
		writeDigest(ctx, 0x2020, pv)

		_, _, err := (&verifySyscall{}).Execute(ctx, SyscallVerify, 0x2000, 0x2020)
		require.NoError(t, err)
		require.Equal(t, 1, ctx.Exec.State.ProofStreamPtr)
	})
	t.Run("mismatched digest", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.WriteProof(ProofClaim{VKeyDigest: vkey, PublicValuesDigest: pv})
		writeDigest(ctx, 0x2000, vkey)
		writeDigest(ctx, 0x2020, vkey) // wrong public values digest

		_, _, err := (&verifySyscall{}).Execute(ctx, SyscallVerify, 0x2000, 0x2020)
		require.ErrorContains(t, err, "does not match")
		require.Equal(t, 0, ctx.Exec.State.ProofStreamPtr, "a failed claim consumes nothing")
	})
	t.Run("exhausted proof stream", func(t *testing.T) {
		ctx := testSyscallContext(t)
		_, _, err := (&verifySyscall{}).Execute(ctx, SyscallVerify, 0x2000, 0x2020)
		require.True(t, IsFault(err, FaultStreamUnderrun))
	})
	t.Run("misaligned digest pointer", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.WriteProof(ProofClaim{})
		_, _, err := (&verifySyscall{}).Execute(ctx, SyscallVerify, 0x2001, 0x2020)
		require.ErrorContains(t, err, "misaligned")
	})
}

func TestHintSyscalls(t *testing.T) {
	t.Run("hint_len reports the next buffer", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.WriteStdin([]byte{1, 2, 3})
		result, ret, err := (&hintLenSyscall{}).Execute(ctx, SyscallHintLen, 0, 0)
		require.NoError(t, err)
		require.True(t, ret)
		require.Equal(t, uint32(3), result)
	})
	t.Run("hint_len with no input", func(t *testing.T) {
		ctx := testSyscallContext(t)
		_, _, err := (&hintLenSyscall{}).Execute(ctx, SyscallHintLen, 0, 0)
		require.ErrorContains(t, err, "no input")
	})
	t.Run("hint_read seeds words little endian", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.WriteStdin([]byte{1, 2, 3, 4, 5, 6}) // partial tail word
		_, _, err := (&hintReadSyscall{}).Execute(ctx, SyscallHintRead, 0x2000, 6)
		require.NoError(t, err)
		s := ctx.Exec.State
		require.Equal(t, uint32(0x04030201), s.UninitializedMemory[0x2000])
		require.Equal(t, uint32(0x00000605), s.UninitializedMemory[0x2004], "tail bytes seed as zero")
		require.Equal(t, 1, s.InputStreamPtr)
	})
	t.Run("hint_read buffers consume in order", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.WriteStdin([]byte{1, 0, 0, 0})
		ctx.Exec.WriteStdin([]byte{2, 0, 0, 0})
		_, _, err := (&hintReadSyscall{}).Execute(ctx, SyscallHintRead, 0x2000, 4)
		require.NoError(t, err)
		_, _, err = (&hintReadSyscall{}).Execute(ctx, SyscallHintRead, 0x2004, 4)
		require.NoError(t, err)
		s := ctx.Exec.State
		require.Equal(t, uint32(1), s.UninitializedMemory[0x2000])
		require.Equal(t, uint32(2), s.UninitializedMemory[0x2004])
	})
	t.Run("hint_read length must match hint_len", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.WriteStdin([]byte{1, 2, 3, 4})
		_, _, err := (&hintReadSyscall{}).Execute(ctx, SyscallHintRead, 0x2000, 3)
		require.ErrorContains(t, err, "buffer length")
	})
	t.Run("hint_read rejects unaligned target", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.WriteStdin([]byte{1, 2, 3, 4})
		_, _, err := (&hintReadSyscall{}).Execute(ctx, SyscallHintRead, 0x2002, 4)
		require.ErrorContains(t, err, "not word-aligned")
	})
	t.Run("hint_read rejects touched memory", func(t *testing.T) {
		ctx := testSyscallContext(t)
		require.NoError(t, ctx.SetWord(0x2000, 9))
		ctx.Exec.WriteStdin([]byte{1, 2, 3, 4})
		_, _, err := (&hintReadSyscall{}).Execute(ctx, SyscallHintRead, 0x2000, 4)
		require.ErrorContains(t, err, "not untouched")
	})
	t.Run("hint_read rejects a pending seed", func(t *testing.T) {
		ctx := testSyscallContext(t)
		ctx.Exec.State.UninitializedMemory[0x2000] = 5
		ctx.Exec.WriteStdin([]byte{1, 2, 3, 4})
		_, _, err := (&hintReadSyscall{}).Execute(ctx, SyscallHintRead, 0x2000, 4)
		require.ErrorContains(t, err, "pending seed")
	})
	t.Run("hint_read with no input", func(t *testing.T) {
		ctx := testSyscallContext(t)
		_, _, err := (&hintReadSyscall{}).Execute(ctx, SyscallHintRead, 0x2000, 0)
		require.ErrorContains(t, err, "no input")
	})
}

func TestSyscallContextReadBytes(t *testing.T) {
	ctx := testSyscallContext(t)
	require.NoError(t, ctx.SetWord(0x2000, 0x04030201))
	require.NoError(t, ctx.SetWord(0x2004, 0x08070605))

	b, err := ctx.ReadBytes(0x2001, 5)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 4, 5, 6}, b)

	b, err = ctx.ReadBytes(0x2000, 0)
	require.NoError(t, err)
	require.Empty(t, b)
}

package executor

import (
	"errors"
	"fmt"
	"io"
)

// ExecutorMode controls whether full trace events are emitted during
// execution. It affects performance and memory, never the final register,
// memory or public-output values.
type ExecutorMode uint8

const (
	// ModeSimple executes without emitting trace events.
	ModeSimple ExecutorMode = iota
	// ModeCheckpoint executes without events but keeps the state cheap to
	// snapshot between shards.
	ModeCheckpoint
	// ModeTrace emits the full per-shard event records.
	ModeTrace
)

func (m ExecutorMode) String() string {
	switch m {
	case ModeSimple:
		return "simple"
	case ModeCheckpoint:
		return "checkpoint"
	case ModeTrace:
		return "trace"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Status is the engine state machine position. The shard-boundary transition
// is transient (finalize, rotate, back to running) and never observed here.
type Status uint8

const (
	StatusRunning Status = iota
	StatusHalted
	StatusFaulted
)

// Config carries the execution constants the surrounding system decides:
// the shard capacity and the per-instruction clock step. They are inputs,
// not built-in values.
type Config struct {
	// ShardSize is the clk threshold that triggers a shard rotation.
	ShardSize uint32
	// ClockStep is the clk/global_clk advance per instruction; syscalls add
	// their extra cycles on top.
	ClockStep uint32
	// Mode selects trace event emission.
	Mode ExecutorMode
}

func (c Config) check() error {
	if c.ShardSize == 0 {
		return errors.New("config: shard size must be set")
	}
	if c.ClockStep == 0 {
		return errors.New("config: clock step must be set")
	}
	return nil
}

// maxByteAddr is the first byte address past the 2 GiB addressable space.
const maxByteAddr = uint32(MaxMemoryWords) * 4

// Executor drives one run: fetch/decode/execute, clock and shard
// bookkeeping, syscall dispatch, and the tracked memory/register paths that
// stamp every access with the current (shard, timestamp) pair.
//
// An Executor is single-threaded; run several executors in parallel if
// needed, never one from two goroutines.
type Executor struct {
	Program *Program
	State   *ExecutionState

	// Records are the finalized per-shard trace records (ModeTrace only).
	Records []*ExecutionRecord

	// ProofStream is the externally supplied sequence of verified-proof
	// claims, consumed in order by the verify syscall.
	ProofStream []ProofClaim

	// DeferredProofsDigest accumulates the words recorded by the
	// commit_deferred syscall.
	DeferredProofsDigest [8]uint32

	// Stdout and Stderr receive guest write-syscall output.
	Stdout io.Writer
	Stderr io.Writer

	cfg      Config
	mode     ExecutorMode
	syscalls map[SyscallCode]Syscall

	record    *ExecutionRecord // current shard record (ModeTrace)
	forkState *ForkState       // active speculative window, if any

	status   Status
	exitCode uint32
}

// NewExecutor builds an engine over the program. The program's memory image
// is written into tracked memory under shard 0 (reserved for
// initialization) before any instruction runs.
func NewExecutor(program *Program, cfg Config) (*Executor, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	e := &Executor{
		Program:  program,
		State:    NewExecutionState(program.PCStart),
		Stdout:   io.Discard,
		Stderr:   io.Discard,
		cfg:      cfg,
		mode:     cfg.Mode,
		syscalls: defaultSyscallTable(),
	}
	for addr, value := range program.Image {
		e.State.Memory.WriteWord(addr, value, 0, 0)
	}
	if e.mode == ModeTrace {
		e.record = &ExecutionRecord{Shard: e.State.CurrentShard}
	}
	return e, nil
}

// ResumeExecutor builds an engine over a previously serialized state, picking
// up mid-run: the program image is not reloaded, since the restored memory
// already carries it (and any writes made before the state was saved).
func ResumeExecutor(program *Program, state *ExecutionState, cfg Config) (*Executor, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	e := &Executor{
		Program:  program,
		State:    state,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
		cfg:      cfg,
		mode:     cfg.Mode,
		syscalls: defaultSyscallTable(),
	}
	if e.mode == ModeTrace {
		e.record = &ExecutionRecord{Shard: e.State.CurrentShard}
	}
	return e, nil
}

// WriteStdin appends one buffer to the input stream consumed by the hint
// syscalls. Must be called before the run starts.
func (e *Executor) WriteStdin(b []byte) {
	buf := make([]byte, len(b))
	copy(buf, b)
	e.State.InputStream = append(e.State.InputStream, buf)
}

// WriteProof appends one verified-proof claim for the verify syscall.
func (e *Executor) WriteProof(claim ProofClaim) {
	e.ProofStream = append(e.ProofStream, claim)
}

// ReadPublicValuesSlice reads from the committed output, see
// ExecutionState.ReadPublicValuesSlice.
func (e *Executor) ReadPublicValuesSlice(buf []byte) error {
	return e.State.ReadPublicValuesSlice(buf)
}

func (e *Executor) Status() Status     { return e.status }
func (e *Executor) Halted() bool       { return e.status == StatusHalted }
func (e *Executor) ExitCode() uint32   { return e.exitCode }
func (e *Executor) Mode() ExecutorMode { return e.mode }

// Run steps until the program halts or faults. A fault is returned as a
// typed *ExecutionError and is terminal; there is no recovery or retry.
// Callers that want to bound a run observe State.GlobalClk and stop calling
// Step instead.
func (e *Executor) Run() error {
	for e.status == StatusRunning {
		if err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}

// fault marks the run as faulted and builds the typed failure. Terminal:
// the partial trace past this point is not valid.
func (e *Executor) fault(kind FaultKind, err error) error {
	e.status = StatusFaulted
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExecutionError{Kind: kind, PC: e.State.PC, GlobalClk: e.State.GlobalClk, Err: err}
}

// checkRange validates that count words starting at the word-aligned addr
// fall inside the addressable space. This is the single validation gate in
// front of the bulk helpers, which themselves do not check.
func (e *Executor) checkRange(addr uint32, count int) error {
	if addr&3 != 0 {
		return e.fault(FaultMemory, fmt.Errorf("misaligned word range start %08x", addr))
	}
	if uint64(addr)+uint64(count)*4 > uint64(maxByteAddr) {
		return e.fault(FaultMemory, fmt.Errorf("word range %08x+%d words exceeds addressable memory", addr, count))
	}
	return nil
}

func (e *Executor) checkAddr(addr uint32, align uint32) error {
	if addr >= maxByteAddr {
		return e.fault(FaultMemory, fmt.Errorf("address %08x outside addressable memory", addr))
	}
	if addr&(align-1) != 0 {
		return e.fault(FaultMemory, fmt.Errorf("address %08x not aligned to %d bytes", addr, align))
	}
	return nil
}

// mr is the tracked word read: it materializes a pending uninitialized-
// memory seed, stamps the record with the current (shard, clk) pair, and
// emits a read event in trace mode. addr must be word-aligned and in range.
func (e *Executor) mr(addr uint32) (uint32, error) {
	if err := e.checkAddr(addr, 4); err != nil {
		return 0, err
	}
	s := e.State
	rec := s.Memory.Entry(addr)
	if seed, ok := s.UninitializedMemory[addr]; ok {
		// one-shot: the seed becomes the stored value and stops re-seeding.
		// It only applies if no write beat the first read to the word.
		if rec.Untouched() && rec.Value == 0 {
			rec.Value = seed
		}
		delete(s.UninitializedMemory, addr)
	}
	prevShard, prevTimestamp := rec.Shard, rec.Timestamp
	rec.Shard = s.CurrentShard
	rec.Timestamp = s.Clk
	if e.mode == ModeTrace {
		e.record.MemoryReads = append(e.record.MemoryReads, MemoryReadRecord{
			Addr:          addr,
			Value:         rec.Value,
			Shard:         rec.Shard,
			Timestamp:     rec.Timestamp,
			PrevShard:     prevShard,
			PrevTimestamp: prevTimestamp,
		})
	}
	return rec.Value, nil
}

// mw is the tracked word write: it records the pre-write record into an
// active fork diff, stamps the new record, and emits a write event in trace
// mode. addr must be word-aligned and in range.
func (e *Executor) mw(addr uint32, value uint32) error {
	if err := e.checkAddr(addr, 4); err != nil {
		return err
	}
	s := e.State
	e.recordForkWrite(addr)
	rec := s.Memory.Entry(addr)
	prev := *rec
	*rec = MemoryRecord{Value: value, Shard: s.CurrentShard, Timestamp: s.Clk}
	if e.mode == ModeTrace {
		e.record.MemoryWrites = append(e.record.MemoryWrites, MemoryWriteRecord{
			Addr:          addr,
			Value:         value,
			Shard:         rec.Shard,
			Timestamp:     rec.Timestamp,
			PrevValue:     prev.Value,
			PrevShard:     prev.Shard,
			PrevTimestamp: prev.Timestamp,
		})
	}
	return nil
}

// rr is the tracked register read; register accesses are stamped like memory
// accesses. x0 is hardwired: it reads as zero and its record is never
// stamped, matching the discarded writes.
func (e *Executor) rr(reg uint32) uint32 {
	if reg == RegZero {
		return 0
	}
	rec := e.State.Registers.entry(reg)
	rec.Shard = e.State.CurrentShard
	rec.Timestamp = e.State.Clk
	return rec.Value
}

// peekWord returns the current value of the word containing addr without
// stamping it or emitting a read event, materializing a pending seed first.
// Sub-word stores use it to fold their read-modify-write into one write
// record, so the write's prev stamp is the previous instruction's access,
// never the store's own.
func (e *Executor) peekWord(addr uint32) uint32 {
	s := e.State
	rec := s.Memory.Entry(addr)
	if seed, ok := s.UninitializedMemory[addr]; ok {
		if rec.Untouched() && rec.Value == 0 {
			rec.Value = seed
		}
		delete(s.UninitializedMemory, addr)
	}
	return rec.Value
}

// rw is the tracked register write. Writes to x0 are dropped.
func (e *Executor) rw(reg uint32, value uint32) {
	e.State.Registers.Set(reg, MemoryRecord{
		Value:     value,
		Shard:     e.State.CurrentShard,
		Timestamp: e.State.Clk,
	})
}

func (e *Executor) halt(exitCode uint32) {
	e.status = StatusHalted
	e.exitCode = exitCode
}

// loadWord reads size bytes (1, 2 or 4) at addr through the tracked word
// path, sign- or zero-extending into a register value. Sub-word access is
// composed from the containing word plus masking.
func (e *Executor) loadWord(addr uint32, size uint32, signed bool) (uint32, error) {
	if err := e.checkAddr(addr, size); err != nil {
		return 0, err
	}
	word, err := e.mr(addr &^ 3)
	if err != nil {
		return 0, err
	}
	shift := (addr & 3) * 8
	switch size {
	case 1:
		b := (word >> shift) & 0xFF
		if signed {
			return uint32(int32(int8(b))), nil
		}
		return b, nil
	case 2:
		h := (word >> shift) & 0xFFFF
		if signed {
			return uint32(int32(int16(h))), nil
		}
		return h, nil
	default:
		return word, nil
	}
}

// storeWord writes size bytes (1, 2 or 4) at addr: sub-word stores peek the
// containing word, merge, and write back as a single tracked write.
func (e *Executor) storeWord(addr uint32, size uint32, value uint32) error {
	if err := e.checkAddr(addr, size); err != nil {
		return err
	}
	wordAddr := addr &^ 3
	if size == 4 {
		return e.mw(wordAddr, value)
	}
	word := e.peekWord(wordAddr)
	shift := (addr & 3) * 8
	mask := uint32(0xFF)
	if size == 2 {
		mask = 0xFFFF
	}
	word = (word &^ (mask << shift)) | ((value & mask) << shift)
	return e.mw(wordAddr, word)
}

// dispatchSyscall routes an ecall: code from t0, args from a0/a1, result
// (if any) back into a0. Unknown codes and unmet preconditions are fatal.
func (e *Executor) dispatchSyscall(pc, nextPC uint32) (uint32, uint32, error) {
	s := e.State
	code := SyscallCode(e.rr(RegT0))
	sc, ok := e.syscalls[code]
	if !ok {
		return 0, 0, e.fault(FaultSyscall, fmt.Errorf("unknown syscall code %#x", uint32(code)))
	}
	arg1 := e.rr(RegA0)
	arg2 := e.rr(RegA1)
	if e.mode == ModeTrace {
		e.record.SyscallEvents = append(e.record.SyscallEvents, SyscallEvent{
			Shard: s.CurrentShard,
			Clk:   s.Clk,
			Code:  code,
			Arg1:  arg1,
			Arg2:  arg2,
		})
	}
	ctx := &SyscallContext{Exec: e, InstrPC: pc, NextPC: nextPC}
	result, hasResult, err := sc.Execute(ctx, code, arg1, arg2)
	if err != nil {
		return 0, 0, e.fault(FaultSyscall, err)
	}
	s.SyscallCounts[code]++
	if hasResult {
		e.rw(RegA0, result)
	}
	return sc.NumExtraCycles(), ctx.NextPC, nil
}

// Step executes one instruction: fetch at pc, decode, execute, advance the
// clocks, and rotate the shard when the capacity threshold is crossed.
// Calls on a halted or faulted engine are no-ops, matching a loop that
// polls between steps.
func (e *Executor) Step() error {
	if e.status != StatusRunning {
		return nil
	}
	s := e.State
	pc := s.PC

	ins, raw, err := e.Program.Fetch(pc)
	if err != nil {
		return e.fault(FaultDecode, err)
	}

	nextPC := pc + 4
	cost := e.cfg.ClockStep

	switch ins.Opcode {
	case LUI:
		e.rw(ins.Rd, uint32(ins.Imm))
	case AUIPC:
		e.rw(ins.Rd, pc+uint32(ins.Imm))
	case JAL:
		e.rw(ins.Rd, pc+4)
		nextPC = pc + uint32(ins.Imm)
	case JALR:
		target := (e.rr(ins.Rs1) + uint32(ins.Imm)) &^ 1 // least significant bit is cleared
		e.rw(ins.Rd, pc+4)
		nextPC = target
	case BEQ, BNE, BLT, BGE, BLTU, BGEU:
		a, b := e.rr(ins.Rs1), e.rr(ins.Rs2)
		var taken bool
		switch ins.Opcode {
		case BEQ:
			taken = a == b
		case BNE:
			taken = a != b
		case BLT:
			taken = int32(a) < int32(b)
		case BGE:
			taken = int32(a) >= int32(b)
		case BLTU:
			taken = a < b
		case BGEU:
			taken = a >= b
		}
		if taken {
			nextPC = pc + uint32(ins.Imm)
		}
	case LB, LH, LW, LBU, LHU:
		addr := e.rr(ins.Rs1) + uint32(ins.Imm)
		size, signed := loadSpec(ins.Opcode)
		v, err := e.loadWord(addr, size, signed)
		if err != nil {
			return err
		}
		e.rw(ins.Rd, v)
	case SB, SH, SW:
		value := e.rr(ins.Rs2)
		addr := e.rr(ins.Rs1) + uint32(ins.Imm)
		size := storeSpec(ins.Opcode)
		if err := e.storeWord(addr, size, value); err != nil {
			return err
		}
	case ADDI, SLTI, SLTIU, XORI, ORI, ANDI, SLLI, SRLI, SRAI:
		e.rw(ins.Rd, aluImm(ins.Opcode, e.rr(ins.Rs1), ins.Imm))
	case ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND,
		MUL, MULH, MULHSU, MULHU, DIV, DIVU, REM, REMU:
		e.rw(ins.Rd, aluReg(ins.Opcode, e.rr(ins.Rs1), e.rr(ins.Rs2)))
	case FENCE, EBREAK:
		// no pipeline to flush and no debugger attached: no-ops
	case ECALL:
		extra, newNextPC, err := e.dispatchSyscall(pc, nextPC)
		if err != nil {
			return err
		}
		nextPC = newNextPC
		cost += extra
	default:
		return e.fault(FaultDecode, fmt.Errorf("unhandled opcode %s", ins.Opcode))
	}

	if e.mode == ModeTrace {
		e.record.CpuEvents = append(e.record.CpuEvents, CpuEvent{
			Shard:       s.CurrentShard,
			Clk:         s.Clk,
			PC:          pc,
			Instruction: raw,
			NextPC:      nextPC,
		})
	}

	s.PC = nextPC
	s.Clk += cost
	s.GlobalClk += uint64(cost)

	switch {
	case e.status == StatusHalted:
		e.finalizeShard(false)
	case s.Clk >= e.cfg.ShardSize:
		// transient shard-boundary transition: finalize, rotate, resume
		e.finalizeShard(true)
	}
	return nil
}

// finalizeShard closes the current shard's trace and, when rotating,
// advances the shard counter and resets the intra-shard clock.
func (e *Executor) finalizeShard(rotate bool) {
	if e.mode == ModeTrace && e.record != nil {
		e.Records = append(e.Records, e.record)
		e.record = nil
	}
	if rotate {
		e.State.CurrentShard++
		e.State.Clk = 0
		if e.mode == ModeTrace {
			e.record = &ExecutionRecord{Shard: e.State.CurrentShard}
		}
	}
}

func loadSpec(op Opcode) (size uint32, signed bool) {
	switch op {
	case LB:
		return 1, true
	case LH:
		return 2, true
	case LBU:
		return 1, false
	case LHU:
		return 2, false
	default:
		return 4, true
	}
}

func storeSpec(op Opcode) uint32 {
	switch op {
	case SB:
		return 1
	case SH:
		return 2
	default:
		return 4
	}
}

func aluImm(op Opcode, rs1 uint32, imm int32) uint32 {
	switch op {
	case ADDI:
		return rs1 + uint32(imm)
	case SLTI:
		if int32(rs1) < imm {
			return 1
		}
		return 0
	case SLTIU:
		if rs1 < uint32(imm) {
			return 1
		}
		return 0
	case XORI:
		return rs1 ^ uint32(imm)
	case ORI:
		return rs1 | uint32(imm)
	case ANDI:
		return rs1 & uint32(imm)
	case SLLI:
		return rs1 << (uint32(imm) & 0x1F)
	case SRLI:
		return rs1 >> (uint32(imm) & 0x1F)
	default: // SRAI
		return uint32(int32(rs1) >> (uint32(imm) & 0x1F))
	}
}

func aluReg(op Opcode, rs1, rs2 uint32) uint32 {
	switch op {
	case ADD:
		return rs1 + rs2
	case SUB:
		return rs1 - rs2
	case SLL:
		return rs1 << (rs2 & 0x1F)
	case SLT:
		if int32(rs1) < int32(rs2) {
			return 1
		}
		return 0
	case SLTU:
		if rs1 < rs2 {
			return 1
		}
		return 0
	case XOR:
		return rs1 ^ rs2
	case SRL:
		return rs1 >> (rs2 & 0x1F)
	case SRA:
		return uint32(int32(rs1) >> (rs2 & 0x1F))
	case OR:
		return rs1 | rs2
	case AND:
		return rs1 & rs2
	case MUL:
		return rs1 * rs2
	case MULH: // upper bits of signed x signed
		return uint32((int64(int32(rs1)) * int64(int32(rs2))) >> 32)
	case MULHSU: // upper bits of signed x unsigned
		return uint32((int64(int32(rs1)) * int64(rs2)) >> 32)
	case MULHU: // upper bits of unsigned x unsigned
		return uint32((uint64(rs1) * uint64(rs2)) >> 32)
	case DIV:
		switch {
		case rs2 == 0:
			return ^uint32(0)
		case int32(rs1) == -1<<31 && int32(rs2) == -1: // overflow case
			return rs1
		default:
			return uint32(int32(rs1) / int32(rs2))
		}
	case DIVU:
		if rs2 == 0 {
			return ^uint32(0)
		}
		return rs1 / rs2
	case REM:
		switch {
		case rs2 == 0:
			return rs1
		case int32(rs1) == -1<<31 && int32(rs2) == -1:
			return 0
		default:
			return uint32(int32(rs1) % int32(rs2))
		}
	default: // REMU
		if rs2 == 0 {
			return rs1
		}
		return rs1 % rs2
	}
}

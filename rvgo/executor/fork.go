package executor

// ForkState is a point-in-time delta checkpoint: the clocks and pc at the
// fork point plus every memory record overwritten since, as it was
// immediately before the first post-fork write (first-write-wins). Replaying
// the diff against the post-fork memory reconstructs the pre-fork memory
// exactly. Much cheaper than ExecutionState.Save, which copies everything.
type ForkState struct {
	GlobalClk uint64
	Clk       uint32
	PC        uint32
	// MemoryDiff maps a word address to its pre-fork record; nil means the
	// page was absent, i.e. the word was an implicit zero record.
	MemoryDiff map[uint32]*MemoryRecord
	// ExecutorMode in effect at the fork point, restored on Restore.
	ExecutorMode ExecutorMode
}

// Fork snapshots the current position and starts recording memory deltas.
// The returned state is consumed by Restore, or simply dropped to keep the
// post-fork timeline.
func (e *Executor) Fork() *ForkState {
	return &ForkState{
		GlobalClk:    e.State.GlobalClk,
		Clk:          e.State.Clk,
		PC:           e.State.PC,
		MemoryDiff:   make(map[uint32]*MemoryRecord),
		ExecutorMode: e.mode,
	}
}

// recordForkWrite captures the pre-write record of addr into the active fork
// diff. Only the first write per address is captured.
func (e *Executor) recordForkWrite(addr uint32) {
	fs := e.forkState
	if fs == nil {
		return
	}
	if _, ok := fs.MemoryDiff[addr]; ok {
		return
	}
	if rec, ok := e.State.Memory.Lookup(addr); ok {
		prev := rec
		fs.MemoryDiff[addr] = &prev
	} else {
		fs.MemoryDiff[addr] = nil
	}
}

// Restore rolls the run back to the fork point: the memory diff is replayed
// in inverse, and the clocks, pc and executor mode are reset to their
// captured values. Writes made before the fork are untouched.
func (e *Executor) Restore(fs *ForkState) {
	mem := e.State.Memory
	for addr, prev := range fs.MemoryDiff {
		if prev == nil {
			// the word did not exist pre-fork; a zero record is
			// observationally identical
			*mem.Entry(addr) = MemoryRecord{}
		} else {
			*mem.Entry(addr) = *prev
		}
	}
	e.State.GlobalClk = fs.GlobalClk
	e.State.Clk = fs.Clk
	e.State.PC = fs.PC
	e.mode = fs.ExecutorMode
}

package executor

// Trace event types the engine must produce per shard. Their wire encoding
// is owned by the proving subsystem; the executor only guarantees ordering
// and the provenance fields.

// MemoryReadRecord is one tracked read: the value observed plus the
// provenance of the access and of the previous access to the same word.
type MemoryReadRecord struct {
	Addr          uint32 `json:"addr"`
	Value         uint32 `json:"value"`
	Shard         uint32 `json:"shard"`
	Timestamp     uint32 `json:"timestamp"`
	PrevShard     uint32 `json:"prevShard"`
	PrevTimestamp uint32 `json:"prevTimestamp"`
}

// MemoryWriteRecord is one tracked write, carrying the overwritten record so
// the trace consumer can check the strictly-advancing timestamp invariant.
type MemoryWriteRecord struct {
	Addr          uint32 `json:"addr"`
	Value         uint32 `json:"value"`
	Shard         uint32 `json:"shard"`
	Timestamp     uint32 `json:"timestamp"`
	PrevValue     uint32 `json:"prevValue"`
	PrevShard     uint32 `json:"prevShard"`
	PrevTimestamp uint32 `json:"prevTimestamp"`
}

// CpuEvent is one executed instruction.
type CpuEvent struct {
	Shard       uint32 `json:"shard"`
	Clk         uint32 `json:"clk"`
	PC          uint32 `json:"pc"`
	Instruction uint32 `json:"instruction"` // raw word
	NextPC      uint32 `json:"nextPc"`
}

// SyscallEvent is one dispatched syscall.
type SyscallEvent struct {
	Shard uint32      `json:"shard"`
	Clk   uint32      `json:"clk"`
	Code  SyscallCode `json:"code"`
	Arg1  uint32      `json:"arg1"`
	Arg2  uint32      `json:"arg2"`
}

// ExecutionRecord collects the trace events of one shard, in execution
// order. A record is finalized when the shard rotates or the run ends.
type ExecutionRecord struct {
	Shard         uint32              `json:"shard"`
	CpuEvents     []CpuEvent          `json:"cpuEvents"`
	MemoryReads   []MemoryReadRecord  `json:"memoryReads"`
	MemoryWrites  []MemoryWriteRecord `json:"memoryWrites"`
	SyscallEvents []SyscallEvent      `json:"syscallEvents"`
}

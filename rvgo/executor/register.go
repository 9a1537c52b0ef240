package executor

import "fmt"

// Register aliases used by the syscall calling convention.
const (
	RegZero = 0  // x0, hardwired zero
	RegT0   = 5  // x5, syscall code
	RegA0   = 10 // x10, syscall arg1 / return value
	RegA1   = 11 // x11, syscall arg2
	RegA2   = 12 // x12, extra syscall operand (byte count for write)
)

// RegisterFile holds the 32 architectural registers as memory records, split
// into a hot block (x0-x7, accessed on nearly every instruction) and a cold
// block (x8-x31). x0 always reads as zero; writes to it are discarded.
type RegisterFile struct {
	Hot  [8]MemoryRecord  `json:"hot"`
	Cold [24]MemoryRecord `json:"cold"`
}

// entry returns a pointer to the register's record. Indices are bounded by
// instruction decode; anything out of range is a programming error.
func (rf *RegisterFile) entry(reg uint32) *MemoryRecord {
	if reg < 8 {
		return &rf.Hot[reg]
	}
	if reg < 32 {
		return &rf.Cold[reg-8]
	}
	panic(fmt.Errorf("register index out of range: %d", reg))
}

// Get returns a copy of the register's record.
func (rf *RegisterFile) Get(reg uint32) MemoryRecord {
	return *rf.entry(reg)
}

// Set overwrites the register's record. Writes to x0 are silently dropped.
func (rf *RegisterFile) Set(reg uint32, rec MemoryRecord) {
	if reg == RegZero {
		return
	}
	*rf.entry(reg) = rec
}

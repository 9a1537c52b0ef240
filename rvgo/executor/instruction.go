package executor

import "fmt"

// Opcode identifies one RV32IM operation after decode.
type Opcode uint8

const (
	// RV32I
	LUI Opcode = iota + 1
	AUIPC
	JAL
	JALR
	BEQ
	BNE
	BLT
	BGE
	BLTU
	BGEU
	LB
	LH
	LW
	LBU
	LHU
	SB
	SH
	SW
	ADDI
	SLTI
	SLTIU
	XORI
	ORI
	ANDI
	SLLI
	SRLI
	SRAI
	ADD
	SUB
	SLL
	SLT
	SLTU
	XOR
	SRL
	SRA
	OR
	AND
	FENCE
	ECALL
	EBREAK
	// RV32M
	MUL
	MULH
	MULHSU
	MULHU
	DIV
	DIVU
	REM
	REMU
)

var opcodeNames = map[Opcode]string{
	LUI: "lui", AUIPC: "auipc", JAL: "jal", JALR: "jalr",
	BEQ: "beq", BNE: "bne", BLT: "blt", BGE: "bge", BLTU: "bltu", BGEU: "bgeu",
	LB: "lb", LH: "lh", LW: "lw", LBU: "lbu", LHU: "lhu",
	SB: "sb", SH: "sh", SW: "sw",
	ADDI: "addi", SLTI: "slti", SLTIU: "sltiu", XORI: "xori", ORI: "ori", ANDI: "andi",
	SLLI: "slli", SRLI: "srli", SRAI: "srai",
	ADD: "add", SUB: "sub", SLL: "sll", SLT: "slt", SLTU: "sltu",
	XOR: "xor", SRL: "srl", SRA: "sra", OR: "or", AND: "and",
	FENCE: "fence", ECALL: "ecall", EBREAK: "ebreak",
	MUL: "mul", MULH: "mulh", MULHSU: "mulhsu", MULHU: "mulhu",
	DIV: "div", DIVU: "divu", REM: "rem", REMU: "remu",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// Instruction is one decoded RV32IM instruction. Fields not applicable to
// the instruction type are zero.
type Instruction struct {
	Opcode Opcode
	Rd     uint32
	Rs1    uint32
	Rs2    uint32
	Imm    int32
}

func (i Instruction) String() string {
	return fmt.Sprintf("%s rd=x%d rs1=x%d rs2=x%d imm=%d", i.Opcode, i.Rd, i.Rs1, i.Rs2, i.Imm)
}

package executor

// Instruction encoding helpers for building guest programs in tests.
// Field layout follows the RV32 base encoding.

func encR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return opcode | rd<<7 | funct3<<12 | rs1<<15 | rs2<<20 | funct7<<25
}

func encI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return opcode | rd<<7 | funct3<<12 | rs1<<15 | uint32(imm)<<20
}

func encS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	i := uint32(imm)
	return opcode | (i&0x1F)<<7 | funct3<<12 | rs1<<15 | rs2<<20 | (i>>5&0x7F)<<25
}

func encB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	i := uint32(imm)
	return opcode | (i>>11&0x1)<<7 | (i>>1&0xF)<<8 | funct3<<12 | rs1<<15 | rs2<<20 |
		(i>>5&0x3F)<<25 | (i>>12&0x1)<<31
}

func encU(opcode, rd, imm20 uint32) uint32 {
	return opcode | rd<<7 | imm20<<12
}

func encJ(opcode, rd uint32, imm int32) uint32 {
	i := uint32(imm)
	return opcode | rd<<7 | (i>>12&0xFF)<<12 | (i>>11&0x1)<<20 | (i>>1&0x3FF)<<21 | (i>>20&0x1)<<31
}

// mnemonics used by the test programs

func addi(rd, rs1 uint32, imm int32) uint32 { return encI(0x13, rd, 0, rs1, imm) }
func xori(rd, rs1 uint32, imm int32) uint32 { return encI(0x13, rd, 4, rs1, imm) }
func slli(rd, rs1, shamt uint32) uint32     { return encI(0x13, rd, 1, rs1, int32(shamt)) }
func srai(rd, rs1, shamt uint32) uint32 {
	return encI(0x13, rd, 5, rs1, int32(shamt)) | 0x20<<25
}

func add(rd, rs1, rs2 uint32) uint32    { return encR(0x33, rd, 0, rs1, rs2, 0x00) }
func sub(rd, rs1, rs2 uint32) uint32    { return encR(0x33, rd, 0, rs1, rs2, 0x20) }
func xor(rd, rs1, rs2 uint32) uint32    { return encR(0x33, rd, 4, rs1, rs2, 0x00) }
func sltu(rd, rs1, rs2 uint32) uint32   { return encR(0x33, rd, 3, rs1, rs2, 0x00) }
func mul(rd, rs1, rs2 uint32) uint32    { return encR(0x33, rd, 0, rs1, rs2, 0x01) }
func mulh(rd, rs1, rs2 uint32) uint32   { return encR(0x33, rd, 1, rs1, rs2, 0x01) }
func div(rd, rs1, rs2 uint32) uint32    { return encR(0x33, rd, 4, rs1, rs2, 0x01) }
func rem(rd, rs1, rs2 uint32) uint32    { return encR(0x33, rd, 6, rs1, rs2, 0x01) }

func lui(rd, imm20 uint32) uint32   { return encU(0x37, rd, imm20) }
func auipc(rd, imm20 uint32) uint32 { return encU(0x17, rd, imm20) }

func lw(rd, rs1 uint32, imm int32) uint32  { return encI(0x03, rd, 2, rs1, imm) }
func lh(rd, rs1 uint32, imm int32) uint32  { return encI(0x03, rd, 1, rs1, imm) }
func lbu(rd, rs1 uint32, imm int32) uint32 { return encI(0x03, rd, 4, rs1, imm) }
func sw(rs1, rs2 uint32, imm int32) uint32 { return encS(0x23, 2, rs1, rs2, imm) }
func sh(rs1, rs2 uint32, imm int32) uint32 { return encS(0x23, 1, rs1, rs2, imm) }
func sb(rs1, rs2 uint32, imm int32) uint32 { return encS(0x23, 0, rs1, rs2, imm) }

func beq(rs1, rs2 uint32, imm int32) uint32  { return encB(0x63, 0, rs1, rs2, imm) }
func bne(rs1, rs2 uint32, imm int32) uint32  { return encB(0x63, 1, rs1, rs2, imm) }
func blt(rs1, rs2 uint32, imm int32) uint32  { return encB(0x63, 4, rs1, rs2, imm) }
func jal(rd uint32, imm int32) uint32        { return encJ(0x6F, rd, imm) }
func jalr(rd, rs1 uint32, imm int32) uint32  { return encI(0x67, rd, 0, rs1, imm) }

func ecall() uint32 { return 0x73 }

// li loads a small immediate (|imm| < 2048) into rd.
func li(rd uint32, imm int32) uint32 { return addi(rd, 0, imm) }

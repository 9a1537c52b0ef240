package executor

import "fmt"

func parseOpcodeBits(instr uint32) uint32 {
	return instr & 0x7F
}

func parseRd(instr uint32) uint32 {
	return (instr >> 7) & 0x1F
}

func parseFunct3(instr uint32) uint32 {
	return (instr >> 12) & 0x7
}

func parseRs1(instr uint32) uint32 {
	return (instr >> 15) & 0x1F
}

func parseRs2(instr uint32) uint32 {
	return (instr >> 20) & 0x1F
}

func parseFunct7(instr uint32) uint32 {
	return (instr >> 25) & 0x7F
}

func parseImmTypeI(instr uint32) int32 {
	return int32(instr) >> 20
}

func parseImmTypeS(instr uint32) int32 {
	return (int32(instr&0xFE00_0000) >> 20) | int32((instr>>7)&0x1F)
}

func parseImmTypeB(instr uint32) int32 {
	// imm is a signed offset in multiples of 2 bytes: 13 bits with a
	// hardwired 0 bit.
	return (int32(instr&0x8000_0000) >> 19) |
		int32((instr&0x80)<<4) |
		int32((instr>>20)&0x7E0) |
		int32((instr>>7)&0x1E)
}

func parseImmTypeU(instr uint32) int32 {
	return int32(instr & 0xFFFF_F000)
}

func parseImmTypeJ(instr uint32) int32 {
	// 21 bits with a hardwired 0 bit.
	return (int32(instr&0x8000_0000) >> 11) |
		int32(instr&0xF_F000) |
		int32((instr>>9)&0x800) |
		int32((instr>>20)&0x7FE)
}

// Decode maps one raw RV32IM instruction word to its decoded form. Bits that
// do not map to a supported operation are a decode fault; the caller wraps
// the error with pc/global_clk context.
func Decode(instr uint32) (Instruction, error) {
	rd := parseRd(instr)
	funct3 := parseFunct3(instr)
	rs1 := parseRs1(instr)
	rs2 := parseRs2(instr)
	funct7 := parseFunct7(instr)

	bad := func() (Instruction, error) {
		return Instruction{}, fmt.Errorf("unsupported instruction bits %08x", instr)
	}

	switch parseOpcodeBits(instr) {
	case 0x37: // 011_0111: LUI
		return Instruction{Opcode: LUI, Rd: rd, Imm: parseImmTypeU(instr)}, nil
	case 0x17: // 001_0111: AUIPC
		return Instruction{Opcode: AUIPC, Rd: rd, Imm: parseImmTypeU(instr)}, nil
	case 0x6F: // 110_1111: JAL
		return Instruction{Opcode: JAL, Rd: rd, Imm: parseImmTypeJ(instr)}, nil
	case 0x67: // 110_0111: JALR
		if funct3 != 0 {
			return bad()
		}
		return Instruction{Opcode: JALR, Rd: rd, Rs1: rs1, Imm: parseImmTypeI(instr)}, nil
	case 0x63: // 110_0011: branching
		imm := parseImmTypeB(instr)
		var op Opcode
		switch funct3 {
		case 0: // 000 = BEQ
			op = BEQ
		case 1: // 001 = BNE
			op = BNE
		case 4: // 100 = BLT
			op = BLT
		case 5: // 101 = BGE
			op = BGE
		case 6: // 110 = BLTU
			op = BLTU
		case 7: // 111 = BGEU
			op = BGEU
		default:
			return bad()
		}
		return Instruction{Opcode: op, Rs1: rs1, Rs2: rs2, Imm: imm}, nil
	case 0x03: // 000_0011: memory loading
		imm := parseImmTypeI(instr)
		var op Opcode
		switch funct3 {
		case 0: // 000 = LB
			op = LB
		case 1: // 001 = LH
			op = LH
		case 2: // 010 = LW
			op = LW
		case 4: // 100 = LBU
			op = LBU
		case 5: // 101 = LHU
			op = LHU
		default:
			return bad()
		}
		return Instruction{Opcode: op, Rd: rd, Rs1: rs1, Imm: imm}, nil
	case 0x23: // 010_0011: memory storing
		imm := parseImmTypeS(instr)
		var op Opcode
		switch funct3 {
		case 0: // 000 = SB
			op = SB
		case 1: // 001 = SH
			op = SH
		case 2: // 010 = SW
			op = SW
		default:
			return bad()
		}
		return Instruction{Opcode: op, Rs1: rs1, Rs2: rs2, Imm: imm}, nil
	case 0x13: // 001_0011: immediate arithmetic and logic
		imm := parseImmTypeI(instr)
		var op Opcode
		switch funct3 {
		case 0: // 000 = ADDI
			op = ADDI
		case 1: // 001 = SLLI
			if funct7 != 0x00 {
				return bad()
			}
			return Instruction{Opcode: SLLI, Rd: rd, Rs1: rs1, Imm: int32(rs2)}, nil
		case 2: // 010 = SLTI
			op = SLTI
		case 3: // 011 = SLTIU
			op = SLTIU
		case 4: // 100 = XORI
			op = XORI
		case 5: // 101 = SR~
			switch funct7 {
			case 0x00: // 0000000 = SRLI
				return Instruction{Opcode: SRLI, Rd: rd, Rs1: rs1, Imm: int32(rs2)}, nil
			case 0x20: // 0100000 = SRAI
				return Instruction{Opcode: SRAI, Rd: rd, Rs1: rs1, Imm: int32(rs2)}, nil
			default:
				return bad()
			}
		case 6: // 110 = ORI
			op = ORI
		case 7: // 111 = ANDI
			op = ANDI
		default:
			return bad()
		}
		return Instruction{Opcode: op, Rd: rd, Rs1: rs1, Imm: imm}, nil
	case 0x33: // 011_0011: register arithmetic and logic
		var op Opcode
		switch funct7 {
		case 0x01: // RV32M extension
			switch funct3 {
			case 0: // 000 = MUL
				op = MUL
			case 1: // 001 = MULH
				op = MULH
			case 2: // 010 = MULHSU
				op = MULHSU
			case 3: // 011 = MULHU
				op = MULHU
			case 4: // 100 = DIV
				op = DIV
			case 5: // 101 = DIVU
				op = DIVU
			case 6: // 110 = REM
				op = REM
			case 7: // 111 = REMU
				op = REMU
			}
		case 0x00:
			switch funct3 {
			case 0: // 000 = ADD
				op = ADD
			case 1: // 001 = SLL
				op = SLL
			case 2: // 010 = SLT
				op = SLT
			case 3: // 011 = SLTU
				op = SLTU
			case 4: // 100 = XOR
				op = XOR
			case 5: // 101 = SRL
				op = SRL
			case 6: // 110 = OR
				op = OR
			case 7: // 111 = AND
				op = AND
			}
		case 0x20:
			switch funct3 {
			case 0: // 000 = SUB
				op = SUB
			case 5: // 101 = SRA
				op = SRA
			default:
				return bad()
			}
		default:
			return bad()
		}
		return Instruction{Opcode: op, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
	case 0x0F: // 000_1111: fence
		// No pipeline and no other harts: nothing to synchronize, decode to
		// a no-op.
		return Instruction{Opcode: FENCE}, nil
	case 0x73: // 111_0011: environment
		if funct3 != 0 || rd != 0 || rs1 != 0 {
			return bad() // CSR instructions are not part of the supported subset
		}
		switch instr >> 20 { // I-type, top 12 bits
		case 0: // imm12 = 000000000000 ECALL
			return Instruction{Opcode: ECALL}, nil
		case 1: // imm12 = 000000000001 EBREAK
			return Instruction{Opcode: EBREAK}, nil
		default:
			return bad()
		}
	default:
		return bad()
	}
}

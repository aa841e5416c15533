// Package rv32 encodes RV32IM instructions. Encoders return the raw
// 32-bit word, Append* helpers grow a code buffer in place.
package rv32

type (
	Reg uint8
)

// ABI register names.
const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

func encR(funct7, rs2, rs1, funct3, rd, opc uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opc
}

func encI(imm int32, rs1 Reg, funct3 uint32, rd Reg, opc uint32) uint32 {
	return uint32(imm)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opc
}

func encS(imm int32, rs2, rs1 Reg, funct3 uint32, opc uint32) uint32 {
	i := uint32(imm)

	return (i>>5&0x7f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | (i&0x1f)<<7 | opc
}

func encB(imm int32, rs2, rs1 Reg, funct3 uint32) uint32 {
	i := uint32(imm)

	return (i>>12&1)<<31 | (i>>5&0x3f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		funct3<<12 | (i>>1&0xf)<<8 | (i>>11&1)<<7 | 0x63
}

func encU(imm uint32, rd Reg, opc uint32) uint32 {
	return imm&0xfffff000 | uint32(rd)<<7 | opc
}

func encJ(imm int32, rd Reg) uint32 {
	i := uint32(imm)

	return (i>>20&1)<<31 | (i>>1&0x3ff)<<21 | (i>>11&1)<<20 | (i>>12&0xff)<<12 | uint32(rd)<<7 | 0x6f
}

func reg(op uint32) func(rd, rs1, rs2 Reg) uint32 {
	return func(rd, rs1, rs2 Reg) uint32 {
		return encR(op>>3, uint32(rs2), uint32(rs1), op&7, uint32(rd), 0x33)
	}
}

// opcode constants pack funct7<<3 | funct3
var (
	Add   = reg(0x000<<3 | 0)
	Sub   = reg(0x20<<3 | 0)
	Sll   = reg(0x00<<3 | 1)
	Slt   = reg(0x00<<3 | 2)
	Sltu  = reg(0x00<<3 | 3)
	Xor   = reg(0x00<<3 | 4)
	Srl   = reg(0x00<<3 | 5)
	Sra   = reg(0x20<<3 | 5)
	Or    = reg(0x00<<3 | 6)
	And   = reg(0x00<<3 | 7)
	Mul   = reg(0x01<<3 | 0)
	Mulh  = reg(0x01<<3 | 1)
	Mulhu = reg(0x01<<3 | 3)
	Div   = reg(0x01<<3 | 4)
	Divu  = reg(0x01<<3 | 5)
	Rem   = reg(0x01<<3 | 6)
	Remu  = reg(0x01<<3 | 7)
)

func Addi(rd, rs1 Reg, imm int32) uint32  { return encI(imm, rs1, 0, rd, 0x13) }
func Slti(rd, rs1 Reg, imm int32) uint32  { return encI(imm, rs1, 2, rd, 0x13) }
func Sltiu(rd, rs1 Reg, imm int32) uint32 { return encI(imm, rs1, 3, rd, 0x13) }
func Xori(rd, rs1 Reg, imm int32) uint32  { return encI(imm, rs1, 4, rd, 0x13) }
func Ori(rd, rs1 Reg, imm int32) uint32   { return encI(imm, rs1, 6, rd, 0x13) }
func Andi(rd, rs1 Reg, imm int32) uint32  { return encI(imm, rs1, 7, rd, 0x13) }

func Slli(rd, rs1 Reg, sh uint32) uint32 { return encI(int32(sh&31), rs1, 1, rd, 0x13) }
func Srli(rd, rs1 Reg, sh uint32) uint32 { return encI(int32(sh&31), rs1, 5, rd, 0x13) }
func Srai(rd, rs1 Reg, sh uint32) uint32 { return encI(int32(sh&31|0x400), rs1, 5, rd, 0x13) }

func Lw(rd, rs1 Reg, off int32) uint32  { return encI(off, rs1, 2, rd, 0x03) }
func Lh(rd, rs1 Reg, off int32) uint32  { return encI(off, rs1, 1, rd, 0x03) }
func Lhu(rd, rs1 Reg, off int32) uint32 { return encI(off, rs1, 5, rd, 0x03) }
func Lb(rd, rs1 Reg, off int32) uint32  { return encI(off, rs1, 0, rd, 0x03) }
func Lbu(rd, rs1 Reg, off int32) uint32 { return encI(off, rs1, 4, rd, 0x03) }

func Sw(rs2, rs1 Reg, off int32) uint32 { return encS(off, rs2, rs1, 2, 0x23) }
func Sh(rs2, rs1 Reg, off int32) uint32 { return encS(off, rs2, rs1, 1, 0x23) }
func Sb(rs2, rs1 Reg, off int32) uint32 { return encS(off, rs2, rs1, 0, 0x23) }

func Lui(rd Reg, imm uint32) uint32   { return encU(imm, rd, 0x37) }
func Auipc(rd Reg, imm uint32) uint32 { return encU(imm, rd, 0x17) }

func Jal(rd Reg, off int32) uint32           { return encJ(off, rd) }
func Jalr(rd, rs1 Reg, off int32) uint32     { return encI(off, rs1, 0, rd, 0x67) }
func Beq(rs1, rs2 Reg, off int32) uint32     { return encB(off, rs2, rs1, 0) }
func Bne(rs1, rs2 Reg, off int32) uint32     { return encB(off, rs2, rs1, 1) }
func Blt(rs1, rs2 Reg, off int32) uint32     { return encB(off, rs2, rs1, 4) }
func Bge(rs1, rs2 Reg, off int32) uint32     { return encB(off, rs2, rs1, 5) }
func Bltu(rs1, rs2 Reg, off int32) uint32    { return encB(off, rs2, rs1, 6) }
func Bgeu(rs1, rs2 Reg, off int32) uint32    { return encB(off, rs2, rs1, 7) }

func Ecall() uint32  { return 0x00000073 }
func Ebreak() uint32 { return 0x00100073 }

func Append(b []byte, w uint32) []byte {
	return append(b, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
}

// Patch overwrites the instruction word at off.
func Patch(b []byte, off int, w uint32) {
	b[off] = byte(w)
	b[off+1] = byte(w >> 8)
	b[off+2] = byte(w >> 16)
	b[off+3] = byte(w >> 24)
}

// FitsImm reports whether v fits a 12-bit signed immediate.
func FitsImm(v int32) bool { return v >= -2048 && v < 2048 }

// AppendLi materializes an arbitrary constant: addi from zero when it
// fits, lui plus addi otherwise.
func AppendLi(b []byte, rd Reg, v int32) []byte {
	if FitsImm(v) {
		return Append(b, Addi(rd, Zero, v))
	}

	hi := uint32(v) + 0x800

	b = Append(b, Lui(rd, hi))

	if lo := v & 0xfff; lo != 0 {
		b = Append(b, Addi(rd, rd, v<<20>>20))
	}

	return b
}

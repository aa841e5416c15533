package emu

import (
	"tlog.app/go/errors"

	"lpfx.dev/go/lpfx/compiler/asm/rv32"
)

// expand decodes a compressed instruction into its 32-bit equivalent.
// Encodings the ISA marks reserved are rejected, not executed as
// something adjacent: C.ADDI4SPN with a zero immediate, C.ADDI16SP and
// C.LUI with zero immediates, C.LUI, C.SLLI and C.LWSP to x0, C.JR
// from x0, and the shift encodings with bit 12 set.
func expand(w uint16) (uint32, uint32, error) {
	if w == 0 {
		return 0, 0, errors.New("defined illegal instruction 0x0000")
	}

	f3 := w >> 13 & 7

	bad := func() (uint32, uint32, error) {
		return 0, 0, errors.New("invalid compressed instruction %#04x", w)
	}

	rc := func(pos uint) rv32.Reg { return rv32.Reg(8 + w>>pos&7) }
	rfull := func(pos uint) rv32.Reg { return rv32.Reg(w >> pos & 31) }

	// bits 12|6:2, sign extended
	imm6 := int32(w>>12&1)<<5 | int32(w>>2&31)
	imm6 = imm6 << 26 >> 26

	switch w & 3 {
	case 0:
		switch f3 {
		case 0: // c.addi4spn
			imm := int32(w>>11&3)<<4 | int32(w>>7&15)<<6 | int32(w>>6&1)<<2 | int32(w>>5&1)<<3
			if imm == 0 {
				return bad()
			}

			return rv32.Addi(rc(2), rv32.SP, imm), 2, nil
		case 2: // c.lw
			imm := int32(w>>10&7)<<3 | int32(w>>6&1)<<2 | int32(w>>5&1)<<6

			return rv32.Lw(rc(2), rc(7), imm), 2, nil
		case 6: // c.sw
			imm := int32(w>>10&7)<<3 | int32(w>>6&1)<<2 | int32(w>>5&1)<<6

			return rv32.Sw(rc(2), rc(7), imm), 2, nil
		default:
			return bad()
		}
	case 1:
		switch f3 {
		case 0: // c.addi, c.nop
			return rv32.Addi(rfull(7), rfull(7), imm6), 2, nil
		case 1: // c.jal
			return rv32.Jal(rv32.RA, immCJ(w)), 2, nil
		case 2: // c.li
			return rv32.Addi(rfull(7), rv32.Zero, imm6), 2, nil
		case 3:
			if imm6 == 0 {
				return bad()
			}

			if rfull(7) == rv32.SP { // c.addi16sp
				imm := int32(w>>12&1)<<9 | int32(w>>6&1)<<4 | int32(w>>5&1)<<6 |
					int32(w>>3&3)<<7 | int32(w>>2&1)<<5
				imm = imm << 22 >> 22

				return rv32.Addi(rv32.SP, rv32.SP, imm), 2, nil
			}

			// c.lui
			if rfull(7) == rv32.Zero {
				return bad()
			}

			return rv32.Lui(rfull(7), uint32(imm6)<<12), 2, nil
		case 4: // misc-alu
			rd := rc(7)

			switch w >> 10 & 3 {
			case 0: // c.srli
				if w>>12&1 != 0 {
					return bad()
				}

				return rv32.Srli(rd, rd, uint32(w>>2&31)), 2, nil
			case 1: // c.srai
				if w>>12&1 != 0 {
					return bad()
				}

				return rv32.Srai(rd, rd, uint32(w>>2&31)), 2, nil
			case 2: // c.andi
				return rv32.Andi(rd, rd, imm6), 2, nil
			default:
				if w>>12&1 != 0 {
					return bad()
				}

				rs2 := rc(2)

				switch w >> 5 & 3 {
				case 0:
					return rv32.Sub(rd, rd, rs2), 2, nil
				case 1:
					return rv32.Xor(rd, rd, rs2), 2, nil
				case 2:
					return rv32.Or(rd, rd, rs2), 2, nil
				default:
					return rv32.And(rd, rd, rs2), 2, nil
				}
			}
		case 5: // c.j
			return rv32.Jal(rv32.Zero, immCJ(w)), 2, nil
		case 6: // c.beqz
			return rv32.Beq(rc(7), rv32.Zero, immCB(w)), 2, nil
		default: // c.bnez
			return rv32.Bne(rc(7), rv32.Zero, immCB(w)), 2, nil
		}
	default:
		switch f3 {
		case 0: // c.slli
			if w>>12&1 != 0 || rfull(7) == rv32.Zero {
				return bad()
			}

			return rv32.Slli(rfull(7), rfull(7), uint32(w>>2&31)), 2, nil
		case 2: // c.lwsp
			rd := rfull(7)
			if rd == rv32.Zero {
				return bad()
			}

			imm := int32(w>>12&1)<<5 | int32(w>>4&7)<<2 | int32(w>>2&3)<<6

			return rv32.Lw(rd, rv32.SP, imm), 2, nil
		case 4:
			rs1, rs2 := rfull(7), rfull(2)

			switch {
			case w>>12&1 == 0 && rs2 == rv32.Zero: // c.jr
				if rs1 == rv32.Zero {
					return bad()
				}

				return rv32.Jalr(rv32.Zero, rs1, 0), 2, nil
			case w>>12&1 == 0: // c.mv
				return rv32.Add(rs1, rv32.Zero, rs2), 2, nil
			case rs1 == rv32.Zero && rs2 == rv32.Zero: // c.ebreak
				return rv32.Ebreak(), 2, nil
			case rs2 == rv32.Zero: // c.jalr
				return rv32.Jalr(rv32.RA, rs1, 0), 2, nil
			default: // c.add
				return rv32.Add(rs1, rs1, rs2), 2, nil
			}
		case 6: // c.swsp
			imm := int32(w>>9&15)<<2 | int32(w>>7&3)<<6

			return rv32.Sw(rfull(2), rv32.SP, imm), 2, nil
		default:
			return bad()
		}
	}
}

func immCJ(w uint16) int32 {
	i := int32(w>>12&1)<<11 | int32(w>>11&1)<<4 | int32(w>>9&3)<<8 |
		int32(w>>8&1)<<10 | int32(w>>7&1)<<6 | int32(w>>6&1)<<7 |
		int32(w>>3&7)<<1 | int32(w>>2&1)<<5

	return i << 20 >> 20
}

func immCB(w uint16) int32 {
	i := int32(w>>12&1)<<8 | int32(w>>10&3)<<3 | int32(w>>5&3)<<6 |
		int32(w>>3&3)<<1 | int32(w>>2&1)<<5

	return i << 23 >> 23
}

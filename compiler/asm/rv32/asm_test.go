package rv32

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

// golden words cross-checked against gnu as output
func TestEncodings(t *testing.T) {
	assert.Equal(t, uint32(0x00150513), Addi(A0, A0, 1))     // addi a0, a0, 1
	assert.Equal(t, uint32(0x00c58533), Add(A0, A1, A2))     // add a0, a1, a2
	assert.Equal(t, uint32(0x40c58533), Sub(A0, A1, A2))     // sub a0, a1, a2
	assert.Equal(t, uint32(0x02c58533), Mul(A0, A1, A2))     // mul a0, a1, a2
	assert.Equal(t, uint32(0x02c5c533), Div(A0, A1, A2))     // div a0, a1, a2
	assert.Equal(t, uint32(0x00812503), Lw(A0, SP, 8))       // lw a0, 8(sp)
	assert.Equal(t, uint32(0x00a12423), Sw(A0, SP, 8))       // sw a0, 8(sp)
	assert.Equal(t, uint32(0x12345537), Lui(A0, 0x12345000)) // lui a0, 0x12345
	assert.Equal(t, uint32(0x008000ef), Jal(RA, 8))          // jal ra, .+8
	assert.Equal(t, uint32(0x00008067), Jalr(Zero, RA, 0))   // ret
	assert.Equal(t, uint32(0xfe050ee3), Beq(A0, Zero, -4))   // beq a0, zero, .-4
	assert.Equal(t, uint32(0x4045d513), Srai(A0, A1, 4))     // srai a0, a1, 4
	assert.Equal(t, uint32(0x0045d513), Srli(A0, A1, 4))     // srli a0, a1, 4
	assert.Equal(t, uint32(0x00459513), Slli(A0, A1, 4))     // slli a0, a1, 4
	assert.Equal(t, uint32(0x00000073), Ecall())
	assert.Equal(t, uint32(0x00100073), Ebreak())
}

func TestNegativeImm(t *testing.T) {
	// addi sp, sp, -16
	assert.Equal(t, uint32(0xff010113), Addi(SP, SP, -16))

	// lw ra, -4(s0)
	assert.Equal(t, uint32(0xffc42083), Lw(RA, S0, -4))

	// sw ra, -4(s0)
	assert.Equal(t, uint32(0xfe142e23), Sw(RA, S0, -4))
}

func TestFitsImm(t *testing.T) {
	assert.True(t, FitsImm(0))
	assert.True(t, FitsImm(2047))
	assert.True(t, FitsImm(-2048))
	assert.False(t, FitsImm(2048))
	assert.False(t, FitsImm(-2049))
}

func TestAppendLi(t *testing.T) {
	b := AppendLi(nil, A0, 5)
	assert.Equal(t, []byte{0x13, 0x05, 0x50, 0x00}, b) // addi a0, zero, 5

	// values over 12 bits reconstruct from lui plus addi
	for _, v := range []int32{0x12345678, -0x12345678, 0x7ffff800, 4096, -4096, 0x1000} {
		b = AppendLi(nil, A0, v)

		var got int32

		for len(b) > 0 {
			w := binary.LittleEndian.Uint32(b)
			b = b[4:]

			switch w & 0x7f {
			case 0x37: // lui
				got = int32(w & 0xfffff000)
			case 0x13: // addi
				got += int32(w) >> 20
			default:
				t.Fatalf("unexpected word %08x for %x", w, v)
			}
		}

		assert.Equal(t, v, got, "li %x", v)
	}
}

func TestAppendPatch(t *testing.T) {
	b := Append(nil, Addi(A0, Zero, 1))
	b = Append(b, Addi(A1, Zero, 2))

	assert.Len(t, b, 8)
	assert.Equal(t, Addi(A0, Zero, 1), binary.LittleEndian.Uint32(b))

	Patch(b, 4, Addi(A1, Zero, 3))
	assert.Equal(t, Addi(A1, Zero, 3), binary.LittleEndian.Uint32(b[4:]))
}

package emu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpfx.dev/go/lpfx/compiler/asm/rv32"
)

func mustExpand(t *testing.T, w uint16) uint32 {
	t.Helper()

	x, sz, err := expand(w)
	require.NoError(t, err, "%#04x", w)
	require.Equal(t, uint32(2), sz)

	return x
}

func TestExpand(t *testing.T) {
	// c.nop
	assert.Equal(t, rv32.Addi(rv32.Zero, rv32.Zero, 0), mustExpand(t, 0x0001))

	// c.addi a0, 3
	assert.Equal(t, rv32.Addi(rv32.A0, rv32.A0, 3), mustExpand(t, 0x050d))

	// c.li a0, -1
	assert.Equal(t, rv32.Addi(rv32.A0, rv32.Zero, -1), mustExpand(t, 0x557d))

	// c.mv a0, a1
	assert.Equal(t, rv32.Add(rv32.A0, rv32.Zero, rv32.A1), mustExpand(t, 0x852e))

	// c.add a0, a1
	assert.Equal(t, rv32.Add(rv32.A0, rv32.A0, rv32.A1), mustExpand(t, 0x952e))

	// c.ret
	assert.Equal(t, rv32.Jalr(rv32.Zero, rv32.RA, 0), mustExpand(t, 0x8082))

	// c.lw a0, 4(a1)
	assert.Equal(t, rv32.Lw(rv32.A0, rv32.A1, 4), mustExpand(t, 0x41c8))

	// c.j .+4
	assert.Equal(t, rv32.Jal(rv32.Zero, 4), mustExpand(t, 0xa011))

	// c.beqz a0, .+8
	assert.Equal(t, rv32.Beq(rv32.A0, rv32.Zero, 8), mustExpand(t, 0xc501))

	// c.ebreak
	assert.Equal(t, rv32.Ebreak(), mustExpand(t, 0x9002))
}

func TestExpandReserved(t *testing.T) {
	for _, tc := range []struct {
		name string
		w    uint16
	}{
		{"zero word", 0x0000},
		{"c.addi4spn imm=0", 0x0004},
		{"c.addi16sp imm=0", 0x6101},
		{"c.lui imm=0", 0x6501},
		{"c.lui rd=0", 0x6005},
		{"c.lwsp rd=0", 0x4002},
		{"c.slli rd=0", 0x0012},
		{"c.jr rs1=0", 0x8002},
		{"c.slli bit12", 0x1502},
		{"c.srli bit12", 0x9101},
	} {
		_, _, err := expand(tc.w)
		assert.Error(t, err, tc.name)
	}
}

func TestRunCompressed(t *testing.T) {
	// c.addi a0, 3 twice, then c.ret
	var text []byte
	text = append(text, 0x0d, 0x05)
	text = append(text, 0x0d, 0x05)
	text = append(text, 0x82, 0x80)

	img := testImage(nil)
	img.Text = text

	e := New(img, 0)

	out, err := e.CallFunction(context.Background(), "f", []Kind{I32}, Value{I32, 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{16}, out)
}

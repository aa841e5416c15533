package back

import (
	"context"

	"tlog.app/go/errors"

	"lpfx.dev/go/lpfx/compiler/asm/rv32"
	"lpfx.dev/go/lpfx/compiler/ir"
)

type (
	lowerer struct {
		m *ir.Module
		f *ir.Func

		text     []byte
		addReloc func(off int, name string)

		frame       int32
		slotBase    int32
		scratchBase int32
		valBase     int32

		blockOff []int
		fixups   []fixup
	}

	// fixup is a jal waiting for its target block offset.
	fixup struct {
		off   int
		block ir.BlockID
	}
)

// Frame layout, sp up:
//
//	outgoing call args past a7
//	IR frame slots
//	scratch for branch argument copies
//	one spill word per SSA value
//	saved ra
//
// Every value lives in its spill slot, temporaries t0-t2 carry
// operands, t6 is the address scratch.
func lower(ctx context.Context, text []byte, m *ir.Module, f *ir.Func, start int, addReloc func(int, string)) ([]byte, error) {
	outw, scratch := 0, 0

	for _, b := range f.Blocks {
		if len(b.Params) > scratch {
			scratch = len(b.Params)
		}

		for _, x := range b.Code {
			if x.Op != ir.Call && x.Op != ir.CallExt {
				continue
			}

			if n := len(x.Args) - 8; n > outw {
				outw = n
			}
		}
	}

	l := &lowerer{
		m:        m,
		f:        f,
		text:     text,
		addReloc: addReloc,
		blockOff: make([]int, len(f.Blocks)),
	}

	l.slotBase = int32(outw) * 4
	l.scratchBase = l.slotBase + int32(f.Slots)*4
	l.valBase = l.scratchBase + int32(scratch)*4

	l.frame = l.valBase + int32(f.NumValues())*4 + 4
	l.frame = (l.frame + 15) &^ 15

	l.prologue()

	for bid := range f.Blocks {
		l.blockOff[bid] = len(l.text)

		for _, x := range f.Blocks[bid].Code {
			if err := l.instr(x); err != nil {
				return text, errors.Wrap(err, "block %d", bid)
			}
		}

		if err := l.term(f.Blocks[bid].Term); err != nil {
			return text, errors.Wrap(err, "block %d", bid)
		}
	}

	for _, fx := range l.fixups {
		rel := int32(l.blockOff[fx.block] - fx.off)
		rv32.Patch(l.text, fx.off, rv32.Jal(rv32.Zero, rel))
	}

	return l.text, nil
}

func (l *lowerer) emit(w uint32) { l.text = rv32.Append(l.text, w) }

func (l *lowerer) li(rd rv32.Reg, v int32) { l.text = rv32.AppendLi(l.text, rd, v) }

func (l *lowerer) voff(v ir.Value) int32 { return l.valBase + int32(v)*4 }

func (l *lowerer) lwSP(rd rv32.Reg, off int32) {
	if rv32.FitsImm(off) {
		l.emit(rv32.Lw(rd, rv32.SP, off))
		return
	}

	l.li(rv32.T6, off)
	l.emit(rv32.Add(rv32.T6, rv32.T6, rv32.SP))
	l.emit(rv32.Lw(rd, rv32.T6, 0))
}

func (l *lowerer) swSP(rs rv32.Reg, off int32) {
	if rv32.FitsImm(off) {
		l.emit(rv32.Sw(rs, rv32.SP, off))
		return
	}

	l.li(rv32.T6, off)
	l.emit(rv32.Add(rv32.T6, rv32.T6, rv32.SP))
	l.emit(rv32.Sw(rs, rv32.T6, 0))
}

func (l *lowerer) loadVal(rd rv32.Reg, v ir.Value)  { l.lwSP(rd, l.voff(v)) }
func (l *lowerer) storeVal(rs rv32.Reg, v ir.Value) { l.swSP(rs, l.voff(v)) }

func (l *lowerer) prologue() {
	if rv32.FitsImm(-l.frame) {
		l.emit(rv32.Addi(rv32.SP, rv32.SP, -l.frame))
	} else {
		l.li(rv32.T0, l.frame)
		l.emit(rv32.Sub(rv32.SP, rv32.SP, rv32.T0))
	}

	l.swSP(rv32.RA, l.frame-4)

	for i, p := range l.f.Blocks[0].Params {
		if i < 8 {
			l.storeVal(rv32.A0+rv32.Reg(i), p)
			continue
		}

		l.lwSP(rv32.T0, l.frame+int32(i-8)*4)
		l.storeVal(rv32.T0, p)
	}
}

func (l *lowerer) epilogue() {
	l.lwSP(rv32.RA, l.frame-4)

	if rv32.FitsImm(l.frame) {
		l.emit(rv32.Addi(rv32.SP, rv32.SP, l.frame))
	} else {
		l.li(rv32.T0, l.frame)
		l.emit(rv32.Add(rv32.SP, rv32.SP, rv32.T0))
	}

	l.emit(rv32.Jalr(rv32.Zero, rv32.RA, 0))
}

var binOps = map[ir.Op]func(rd, rs1, rs2 rv32.Reg) uint32{
	ir.IAdd:  rv32.Add,
	ir.ISub:  rv32.Sub,
	ir.IMul:  rv32.Mul,
	ir.IDivS: rv32.Div,
	ir.IDivU: rv32.Divu,
	ir.IRemS: rv32.Rem,
	ir.IRemU: rv32.Remu,
	ir.IAnd:  rv32.And,
	ir.IOr:   rv32.Or,
	ir.IXor:  rv32.Xor,
	ir.Shl:   rv32.Sll,
	ir.ShrS:  rv32.Sra,
	ir.ShrU:  rv32.Srl,
	ir.ILtS:  rv32.Slt,
	ir.ILtU:  rv32.Sltu,
}

func (l *lowerer) instr(x ir.Instr) error {
	switch x.Op {
	case ir.Nop:
	case ir.IConst:
		l.li(rv32.T0, int32(x.Imm))
		l.storeVal(rv32.T0, x.Out)
	case ir.IEq, ir.INe:
		l.loadVal(rv32.T0, x.Args[0])
		l.loadVal(rv32.T1, x.Args[1])
		l.emit(rv32.Sub(rv32.T0, rv32.T0, rv32.T1))

		if x.Op == ir.IEq {
			l.emit(rv32.Sltiu(rv32.T0, rv32.T0, 1))
		} else {
			l.emit(rv32.Sltu(rv32.T0, rv32.Zero, rv32.T0))
		}

		l.storeVal(rv32.T0, x.Out)
	case ir.ILeS, ir.ILeU:
		l.loadVal(rv32.T0, x.Args[0])
		l.loadVal(rv32.T1, x.Args[1])

		// a <= b is !(b < a)
		if x.Op == ir.ILeS {
			l.emit(rv32.Slt(rv32.T0, rv32.T1, rv32.T0))
		} else {
			l.emit(rv32.Sltu(rv32.T0, rv32.T1, rv32.T0))
		}

		l.emit(rv32.Xori(rv32.T0, rv32.T0, 1))
		l.storeVal(rv32.T0, x.Out)
	case ir.Select:
		l.loadVal(rv32.T0, x.Args[0])
		l.loadVal(rv32.T1, x.Args[1])
		l.loadVal(rv32.T2, x.Args[2])
		l.emit(rv32.Bne(rv32.T0, rv32.Zero, 8))
		l.emit(rv32.Addi(rv32.T1, rv32.T2, 0))
		l.storeVal(rv32.T1, x.Out)
	case ir.Slot:
		off := l.slotBase + int32(x.Imm)*4

		if rv32.FitsImm(off) {
			l.emit(rv32.Addi(rv32.T0, rv32.SP, off))
		} else {
			l.li(rv32.T0, off)
			l.emit(rv32.Add(rv32.T0, rv32.T0, rv32.SP))
		}

		l.storeVal(rv32.T0, x.Out)
	case ir.LoadW:
		l.loadVal(rv32.T0, x.Args[0])
		l.mem(rv32.Lw, rv32.T1, rv32.T0, int32(x.Imm))
		l.storeVal(rv32.T1, x.Out)
	case ir.StoreW:
		l.loadVal(rv32.T0, x.Args[0])
		l.loadVal(rv32.T1, x.Args[1])
		l.mem(rv32.Sw, rv32.T1, rv32.T0, int32(x.Imm))
	case ir.Call:
		l.call(x, l.m.Funcs[x.Func].Name)
	case ir.CallExt:
		if x.Ext.Kind != ir.ExternUser {
			return errors.New("unresolved external %v", x.Ext)
		}

		l.call(x, x.Ext.Name)
	default:
		if op, ok := binOps[x.Op]; ok {
			l.loadVal(rv32.T0, x.Args[0])
			l.loadVal(rv32.T1, x.Args[1])
			l.emit(op(rv32.T0, rv32.T0, rv32.T1))
			l.storeVal(rv32.T0, x.Out)

			return nil
		}

		return errors.New("cannot lower %v", x.Op)
	}

	return nil
}

// mem emits a load or store through a register base with an arbitrary
// byte offset. enc is rv32.Lw or rv32.Sw, the value register comes
// first either way.
func (l *lowerer) mem(enc func(a, b rv32.Reg, off int32) uint32, val, base rv32.Reg, off int32) {
	if rv32.FitsImm(off) {
		l.emit(enc(val, base, off))
		return
	}

	l.li(rv32.T6, off)
	l.emit(rv32.Add(rv32.T6, rv32.T6, base))
	l.emit(enc(val, rv32.T6, 0))
}

func (l *lowerer) call(x ir.Instr, name string) {
	for i, a := range x.Args {
		if i < 8 {
			l.loadVal(rv32.A0+rv32.Reg(i), a)
			continue
		}

		l.loadVal(rv32.T0, a)
		l.swSP(rv32.T0, int32(i-8)*4)
	}

	// call site skeleton: the hi20/lo12 immediates are filled by
	// Finalize or by the object loader's relocations
	off := len(l.text)

	l.emit(rv32.Lui(rv32.T6, 0))
	l.emit(rv32.Addi(rv32.T6, rv32.T6, 0))
	l.emit(rv32.Jalr(rv32.RA, rv32.T6, 0))
	l.addReloc(off, name)

	if x.Out != ir.NoValue {
		l.storeVal(rv32.A0, x.Out)
	}
}

// edgeCopy moves branch arguments into the target block parameter
// slots, staging through scratch so overlapping slots stay coherent.
func (l *lowerer) edgeCopy(to ir.BlockID, args []ir.Value) {
	if len(args) == 0 {
		return
	}

	for i, a := range args {
		l.loadVal(rv32.T0, a)
		l.swSP(rv32.T0, l.scratchBase+int32(i)*4)
	}

	for i, p := range l.f.Blocks[to].Params {
		l.lwSP(rv32.T0, l.scratchBase+int32(i)*4)
		l.storeVal(rv32.T0, p)
	}
}

func (l *lowerer) jumpTo(b ir.BlockID) {
	l.fixups = append(l.fixups, fixup{off: len(l.text), block: b})
	l.emit(0)
}

func (l *lowerer) term(t ir.Term) error {
	switch t.Op {
	case ir.Jump:
		l.edgeCopy(t.To, t.ToArgs)
		l.jumpTo(t.To)
	case ir.Br:
		l.loadVal(rv32.T0, t.Cond)

		boff := len(l.text)
		l.emit(0)

		l.edgeCopy(t.To, t.ToArgs)
		l.jumpTo(t.To)

		rv32.Patch(l.text, boff, rv32.Beq(rv32.T0, rv32.Zero, int32(len(l.text)-boff)))

		l.edgeCopy(t.Else, t.ElseArgs)
		l.jumpTo(t.Else)
	case ir.Ret:
		if len(t.Rets) > 0 {
			l.loadVal(rv32.A0, t.Rets[0])
		}

		l.epilogue()
	default:
		return errors.New("cannot lower terminator %v", t.Op)
	}

	return nil
}

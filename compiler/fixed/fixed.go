// Package fixed rewrites float-level SSA into pure integer code over
// Q16.16 values. Additive operations expand into saturating
// instruction sequences, multiplicative and transcendental ones become
// calls to the fixed-point builtins, and test-case externals are
// rebound to their fixed implementations.
package fixed

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/glsl"
	"lpfx.dev/go/lpfx/compiler/ir"
	"lpfx.dev/go/lpfx/qmath"
)

type tr struct {
	src *ir.Func
	f   *ir.Func
	b   ir.BlockID

	vm []ir.Value // old value id -> new value id
}

// Transform lowers a whole module. The input is left untouched, block
// and function numbering carry over to the result.
func Transform(ctx context.Context, m *ir.Module) (_ *ir.Module, err error) {
	sp, ctx := tlog.SpawnFromContextAndWrap(ctx, "fixed: transform", "module", m.Name)
	defer sp.Finish("err", &err)

	out := &ir.Module{Name: m.Name}

	for _, f := range m.Funcs {
		g, err := transformFunc(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}

		out.AddFunc(g)
	}

	return out, nil
}

func transformFunc(ctx context.Context, src *ir.Func) (*ir.Func, error) {
	sig := ir.Sig{
		Params:       make([]ir.Class, len(src.Sig.Params)),
		Ret:          mapClass(src.Sig.Ret),
		StructReturn: src.Sig.StructReturn,
		RetWords:     src.Sig.RetWords,
	}

	for i, c := range src.Sig.Params {
		sig.Params[i] = mapClass(c)
	}

	f := ir.NewFunc(src.Name, sig)
	f.Slots = src.Slots

	t := &tr{
		src: src,
		f:   f,
		vm:  make([]ir.Value, src.NumValues()),
	}

	for i := range t.vm {
		t.vm[i] = ir.NoValue
	}

	for i, v := range src.Blocks[0].Params {
		t.vm[v] = f.Blocks[0].Params[i]
	}

	for _, b := range src.Blocks[1:] {
		classes := make([]ir.Class, len(b.Params))
		for i, v := range b.Params {
			classes[i] = mapClass(src.Class(v))
		}

		id := f.AddBlock(classes...)

		for i, v := range b.Params {
			t.vm[v] = f.Blocks[id].Params[i]
		}
	}

	for bid := range src.Blocks {
		t.b = ir.BlockID(bid)

		for _, x := range src.Blocks[bid].Code {
			if err := t.instr(x); err != nil {
				return nil, err
			}
		}

		if err := t.term(src.Blocks[bid].Term); err != nil {
			return nil, err
		}
	}

	if f.HasFloat() {
		return nil, glsl.Internal("float class survived the transform in %v", f.Name)
	}

	if err := ir.Verify(f); err != nil {
		return nil, errors.Wrap(err, "verify")
	}

	return f, nil
}

func mapClass(c ir.Class) ir.Class {
	if c == ir.ClassF32 {
		return ir.ClassI32
	}

	return c
}

func (t *tr) get(v ir.Value) ir.Value {
	w := t.vm[v]
	if w == ir.NoValue {
		panic("use of an unmapped value")
	}

	return w
}

func (t *tr) args(vs []ir.Value) []ir.Value {
	out := make([]ir.Value, len(vs))

	for i, v := range vs {
		out[i] = t.get(v)
	}

	return out
}

func (t *tr) emit(op ir.Op, out ir.Class, args ...ir.Value) ir.Value {
	return t.f.Emit(t.b, ir.Instr{Op: op, Args: args}, out)
}

func (t *tr) iconst(v int64) ir.Value {
	return t.f.Emit(t.b, ir.Instr{Op: ir.IConst, Imm: v}, ir.ClassI32)
}

func (t *tr) builtin(id qmath.BuiltinId, args ...ir.Value) ir.Value {
	return t.f.Emit(t.b, ir.Instr{
		Op:   ir.CallExt,
		Ext:  &ir.ExternRef{Kind: ir.ExternUser, Name: id.Name()},
		Args: args,
	}, ir.ClassI32)
}

func (t *tr) instr(x ir.Instr) error {
	var out ir.Value

	switch x.Op {
	case ir.Nop:
		return nil
	case ir.FConst:
		out = t.iconst(int64(int32(qmath.FromFloat(x.F))))
	case ir.IConst:
		out = t.iconst(x.Imm)
	case ir.FAdd:
		out = t.satAdd(t.get(x.Args[0]), t.get(x.Args[1]))
	case ir.FSub:
		out = t.satSub(t.get(x.Args[0]), t.get(x.Args[1]))
	case ir.FMul:
		out = t.builtin(qmath.BuiltinQ32Mul, t.args(x.Args)...)
	case ir.FDiv:
		out = t.builtin(qmath.BuiltinQ32Div, t.args(x.Args)...)
	case ir.FNeg:
		out = t.satSub(t.iconst(0), t.get(x.Args[0]))
	case ir.FAbs:
		out = t.abs(t.get(x.Args[0]))
	case ir.FMin, ir.FMax:
		a, b := t.get(x.Args[0]), t.get(x.Args[1])
		c := t.emit(ir.ILtS, ir.ClassI32, a, b)

		if x.Op == ir.FMin {
			out = t.emit(ir.Select, ir.ClassI32, c, a, b)
		} else {
			out = t.emit(ir.Select, ir.ClassI32, c, b, a)
		}
	case ir.FFloor, ir.FTrunc:
		// trunc shares the floor lowering: both strip the fraction
		// by masking, biasing negative values toward minus infinity
		out = t.mask(t.get(x.Args[0]))
	case ir.FCeil:
		out = t.mask(t.satAdd(t.get(x.Args[0]), t.iconst(int64(qmath.One)-1)))
	case ir.FNearest:
		out = t.mask(t.satAdd(t.get(x.Args[0]), t.iconst(int64(qmath.Half))))
	case ir.FSqrt:
		out = t.builtin(qmath.BuiltinQ32Sqrt, t.args(x.Args)...)
	case ir.FSin:
		out = t.builtin(qmath.BuiltinQ32Sin, t.args(x.Args)...)
	case ir.FCos:
		out = t.builtin(qmath.BuiltinQ32Cos, t.args(x.Args)...)
	case ir.FExp:
		out = t.builtin(qmath.BuiltinQ32Exp, t.args(x.Args)...)
	case ir.FLog:
		out = t.builtin(qmath.BuiltinQ32Log, t.args(x.Args)...)
	case ir.FPow:
		out = t.builtin(qmath.BuiltinQ32Pow, t.args(x.Args)...)
	case ir.FAtan2:
		out = t.builtin(qmath.BuiltinQ32Atan2, t.args(x.Args)...)
	case ir.FEq:
		out = t.emit(ir.IEq, ir.ClassI32, t.args(x.Args)...)
	case ir.FNe:
		out = t.emit(ir.INe, ir.ClassI32, t.args(x.Args)...)
	case ir.FLt:
		out = t.emit(ir.ILtS, ir.ClassI32, t.args(x.Args)...)
	case ir.FLe:
		out = t.emit(ir.ILeS, ir.ClassI32, t.args(x.Args)...)
	case ir.FGt:
		out = t.emit(ir.ILtS, ir.ClassI32, t.get(x.Args[1]), t.get(x.Args[0]))
	case ir.FGe:
		out = t.emit(ir.ILeS, ir.ClassI32, t.get(x.Args[1]), t.get(x.Args[0]))
	case ir.SToF, ir.UToF:
		out = t.emit(ir.Shl, ir.ClassI32, t.get(x.Args[0]), t.iconst(16))
	case ir.FToS:
		// truncate toward zero: bias negatives before the shift
		v := t.get(x.Args[0])
		sign := t.emit(ir.ShrS, ir.ClassI32, v, t.iconst(31))
		bias := t.emit(ir.IAnd, ir.ClassI32, sign, t.iconst(int64(qmath.One)-1))
		sum := t.emit(ir.IAdd, ir.ClassI32, v, bias)
		out = t.emit(ir.ShrS, ir.ClassI32, sum, t.iconst(16))
	case ir.Slot:
		out = t.f.Emit(t.b, ir.Instr{Op: ir.Slot, Imm: x.Imm}, ir.ClassPtr)
	case ir.LoadW:
		out = t.f.Emit(t.b, ir.Instr{Op: ir.LoadW, Args: t.args(x.Args), Imm: x.Imm}, mapClass(t.src.Class(x.Out)))
	case ir.StoreW:
		t.f.Emit(t.b, ir.Instr{Op: ir.StoreW, Args: t.args(x.Args), Imm: x.Imm}, ir.ClassNone)

		return nil
	case ir.Call:
		c := ir.ClassNone
		if x.Out != ir.NoValue {
			c = mapClass(t.src.Class(x.Out))
		}

		out = t.f.Emit(t.b, ir.Instr{Op: ir.Call, Func: x.Func, Args: t.args(x.Args)}, c)
	case ir.CallExt:
		return t.callExt(x)
	default:
		// pure integer ops pass through
		c := ir.ClassNone
		if x.Out != ir.NoValue {
			c = mapClass(t.src.Class(x.Out))
		}

		out = t.f.Emit(t.b, ir.Instr{Op: x.Op, Args: t.args(x.Args), Imm: x.Imm}, c)
	}

	if x.Out != ir.NoValue {
		t.vm[x.Out] = out
	}

	return nil
}

// callExt rebinds test-case externals to the fixed builtins. User
// externals pass through unchanged.
func (t *tr) callExt(x ir.Instr) error {
	ext := x.Ext

	if ext.Kind == ir.ExternTestCase {
		id := qmath.LookupBuiltin(ext.Name)
		if id == qmath.BuiltinInvalid {
			return glsl.Internal("unknown test-case external %v", ext.Name)
		}

		ext = &ir.ExternRef{Kind: ir.ExternUser, Name: id.Name()}
	}

	c := ir.ClassNone
	if x.Out != ir.NoValue {
		c = mapClass(t.src.Class(x.Out))
	}

	out := t.f.Emit(t.b, ir.Instr{Op: ir.CallExt, Ext: ext, Args: t.args(x.Args)}, c)

	if x.Out != ir.NoValue {
		t.vm[x.Out] = out
	}

	return nil
}

// satAdd is a branch-free saturating add: overflow happened when the
// operands agree in sign and the sum does not.
func (t *tr) satAdd(a, b ir.Value) ir.Value {
	s := t.emit(ir.IAdd, ir.ClassI32, a, b)

	same := t.emit(ir.IXor, ir.ClassI32, t.emit(ir.IXor, ir.ClassI32, a, b), t.iconst(-1))
	flip := t.emit(ir.IXor, ir.ClassI32, a, s)
	ovf := t.emit(ir.ShrS, ir.ClassI32, t.emit(ir.IAnd, ir.ClassI32, same, flip), t.iconst(31))

	return t.emit(ir.Select, ir.ClassI32, ovf, t.satOf(a), s)
}

func (t *tr) satSub(a, b ir.Value) ir.Value {
	s := t.emit(ir.ISub, ir.ClassI32, a, b)

	diff := t.emit(ir.IXor, ir.ClassI32, a, b)
	flip := t.emit(ir.IXor, ir.ClassI32, a, s)
	ovf := t.emit(ir.ShrS, ir.ClassI32, t.emit(ir.IAnd, ir.ClassI32, diff, flip), t.iconst(31))

	return t.emit(ir.Select, ir.ClassI32, ovf, t.satOf(a), s)
}

// satOf picks the saturation bound by the sign of a: Max for
// non-negative, Min otherwise.
func (t *tr) satOf(a ir.Value) ir.Value {
	sign := t.emit(ir.ShrS, ir.ClassI32, a, t.iconst(31))

	return t.emit(ir.IXor, ir.ClassI32, sign, t.iconst(int64(qmath.Max)))
}

func (t *tr) abs(v ir.Value) ir.Value {
	sign := t.emit(ir.ShrS, ir.ClassI32, v, t.iconst(31))
	x := t.emit(ir.IXor, ir.ClassI32, v, sign)
	s := t.emit(ir.ISub, ir.ClassI32, x, sign)

	isMin := t.emit(ir.IEq, ir.ClassI32, v, t.iconst(int64(qmath.Min)))

	return t.emit(ir.Select, ir.ClassI32, isMin, t.iconst(int64(qmath.Max)), s)
}

func (t *tr) mask(v ir.Value) ir.Value {
	return t.emit(ir.IAnd, ir.ClassI32, v, t.iconst(^(int64(qmath.One) - 1)))
}

func (t *tr) term(x ir.Term) error {
	y := ir.Term{Op: x.Op, To: x.To, Else: x.Else}

	if x.Op == ir.Br {
		y.Cond = t.get(x.Cond)
	}

	y.ToArgs = t.args(x.ToArgs)
	y.ElseArgs = t.args(x.ElseArgs)
	y.Rets = t.args(x.Rets)

	t.f.SetTerm(t.b, y)

	return nil
}

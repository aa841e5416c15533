package back_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpfx.dev/go/lpfx/compiler/back"
	"lpfx.dev/go/lpfx/compiler/ir"
	"lpfx.dev/go/lpfx/emu"
)

func scalarSig(n int) ir.Sig {
	s := ir.Sig{Ret: ir.ClassI32}

	for i := 0; i < n; i++ {
		s.Params = append(s.Params, ir.ClassI32)
	}

	return s
}

func TestSmoke(t *testing.T) {
	ctx := context.Background()

	// f(a, b) = (a + b) * 2
	f := ir.NewFunc("f", scalarSig(2))
	entry := ir.BlockID(0)

	args := f.Blocks[0].Params

	sum := f.Emit(entry, ir.Instr{Op: ir.IAdd, Args: []ir.Value{args[0], args[1]}}, ir.ClassI32)
	two := f.Emit(entry, ir.Instr{Op: ir.IConst, Imm: 2}, ir.ClassI32)
	res := f.Emit(entry, ir.Instr{Op: ir.IMul, Args: []ir.Value{sum, two}}, ir.ClassI32)

	f.SetTerm(entry, ir.Term{Op: ir.Ret, Rets: []ir.Value{res}})

	m := &ir.Module{Name: "test"}
	m.AddFunc(f)

	b := back.NewBuilder(back.Options{})
	require.NoError(t, b.DefineFunction(ctx, m, f))

	img, err := b.Finalize(ctx)
	require.NoError(t, err)

	require.Contains(t, img.Symbols, "f")

	e := emu.New(img, 0)

	out, err := e.CallCompiled(ctx, "f", f.Sig, []uint32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint32{14}, out)
}

func TestBranches(t *testing.T) {
	ctx := context.Background()

	// f(a, b) = a < b ? b : a
	f := ir.NewFunc("f", scalarSig(2))
	entry := ir.BlockID(0)

	thenB := f.AddBlock()
	elseB := f.AddBlock()
	contB := f.AddBlock(ir.ClassI32)

	args := f.Blocks[0].Params

	lt := f.Emit(entry, ir.Instr{Op: ir.ILtS, Args: []ir.Value{args[0], args[1]}}, ir.ClassI32)
	f.SetTerm(entry, ir.Term{Op: ir.Br, Cond: lt, To: thenB, Else: elseB})

	f.SetTerm(thenB, ir.Term{Op: ir.Jump, To: contB, ToArgs: []ir.Value{args[1]}})
	f.SetTerm(elseB, ir.Term{Op: ir.Jump, To: contB, ToArgs: []ir.Value{args[0]}})

	f.SetTerm(contB, ir.Term{Op: ir.Ret, Rets: []ir.Value{f.Blocks[contB].Params[0]}})

	m := &ir.Module{Name: "test"}
	m.AddFunc(f)

	b := back.NewBuilder(back.Options{})
	require.NoError(t, b.DefineFunction(ctx, m, f))

	img, err := b.Finalize(ctx)
	require.NoError(t, err)

	e := emu.New(img, 0)

	out, err := e.CallCompiled(ctx, "f", f.Sig, []uint32{3, 7})
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, out)

	out, err = e.CallCompiled(ctx, "f", f.Sig, []uint32{9, 7})
	require.NoError(t, err)
	assert.Equal(t, []uint32{9}, out)
}

func TestDefineErrors(t *testing.T) {
	ctx := context.Background()

	f := ir.NewFunc("f", scalarSig(1))
	f.SetTerm(0, ir.Term{Op: ir.Ret, Rets: []ir.Value{f.Blocks[0].Params[0]}})

	m := &ir.Module{Name: "test"}
	m.AddFunc(f)

	b := back.NewBuilder(back.Options{})
	require.NoError(t, b.DefineFunction(ctx, m, f))

	// duplicates are refused
	assert.Error(t, b.DefineFunction(ctx, m, f))

	// float values are refused, the transform must run first
	g := ir.NewFunc("g", ir.Sig{Params: []ir.Class{ir.ClassF32}, Ret: ir.ClassF32})
	g.SetTerm(0, ir.Term{Op: ir.Ret, Rets: []ir.Value{g.Blocks[0].Params[0]}})

	assert.Error(t, b.DefineFunction(ctx, m, g))
}

func TestUndefinedSymbol(t *testing.T) {
	ctx := context.Background()

	f := ir.NewFunc("f", scalarSig(1))

	v := f.Emit(0, ir.Instr{
		Op:   ir.CallExt,
		Ext:  &ir.ExternRef{Kind: ir.ExternUser, Name: "no_such_helper"},
		Args: []ir.Value{f.Blocks[0].Params[0]},
	}, ir.ClassI32)

	f.SetTerm(0, ir.Term{Op: ir.Ret, Rets: []ir.Value{v}})

	m := &ir.Module{Name: "test"}
	m.AddFunc(f)

	b := back.NewBuilder(back.Options{})
	require.NoError(t, b.DefineFunction(ctx, m, f))

	_, err := b.Finalize(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined symbol")
}

func TestReleaseIR(t *testing.T) {
	ctx := context.Background()

	f := ir.NewFunc("f", scalarSig(1))
	f.SetTerm(0, ir.Term{Op: ir.Ret, Rets: []ir.Value{f.Blocks[0].Params[0]}})

	m := &ir.Module{Name: "test"}
	m.AddFunc(f)

	b := back.NewBuilder(back.Options{ReleaseIR: true})
	require.NoError(t, b.DefineFunction(ctx, m, f))
	assert.Nil(t, b.FuncIR("f"))

	b = back.NewBuilder(back.Options{})
	require.NoError(t, b.DefineFunction(ctx, m, f))
	assert.NotNil(t, b.FuncIR("f"))
}

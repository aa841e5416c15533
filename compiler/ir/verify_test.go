package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyOK(t *testing.T) {
	f := NewFunc("f", Sig{Params: []Class{ClassI32, ClassI32}, Ret: ClassI32})

	v := f.Emit(0, Instr{Op: IAdd, Args: []Value{f.Blocks[0].Params[0], f.Blocks[0].Params[1]}}, ClassI32)
	f.SetTerm(0, Term{Op: Ret, Rets: []Value{v}})

	require.NoError(t, Verify(f))
}

func TestVerifyBranchArgs(t *testing.T) {
	f := NewFunc("f", Sig{Params: []Class{ClassI32}, Ret: ClassI32})

	b := f.AddBlock(ClassI32)
	f.SetTerm(b, Term{Op: Ret, Rets: []Value{f.Blocks[b].Params[0]}})

	// no argument for the block parameter
	f.SetTerm(0, Term{Op: Jump, To: b})
	assert.Error(t, Verify(f))

	f.SetTerm(0, Term{Op: Jump, To: b, ToArgs: []Value{f.Blocks[0].Params[0]}})
	assert.NoError(t, Verify(f))
}

func TestVerifyClassMismatch(t *testing.T) {
	f := NewFunc("f", Sig{Params: []Class{ClassPtr}})

	b := f.AddBlock(ClassI32)
	f.SetTerm(b, Term{Op: Ret})

	f.SetTerm(0, Term{Op: Jump, To: b, ToArgs: []Value{f.Blocks[0].Params[0]}})
	assert.Error(t, Verify(f))
}

func TestVerifyUseBeforeDef(t *testing.T) {
	f := NewFunc("f", Sig{Ret: ClassI32})

	// manual wiring: the instruction consumes its own result
	out := f.Emit(0, Instr{Op: IConst, Imm: 1}, ClassI32)
	f.Blocks[0].Code[0].Args = []Value{out}

	f.SetTerm(0, Term{Op: Ret, Rets: []Value{out}})
	assert.Error(t, Verify(f))
}

func TestVerifyDominance(t *testing.T) {
	f := NewFunc("f", Sig{Params: []Class{ClassI32}, Ret: ClassI32})

	thenB := f.AddBlock()
	elseB := f.AddBlock()

	p := f.Blocks[0].Params[0]
	f.SetTerm(0, Term{Op: Br, Cond: p, To: thenB, Else: elseB})

	v := f.Emit(thenB, Instr{Op: IConst, Imm: 1}, ClassI32)
	f.SetTerm(thenB, Term{Op: Ret, Rets: []Value{v}})

	// elseB uses a value defined only on the then path
	f.SetTerm(elseB, Term{Op: Ret, Rets: []Value{v}})
	assert.Error(t, Verify(f))
}

func TestAppendPrint(t *testing.T) {
	f := NewFunc("f", Sig{Params: []Class{ClassI32}, Ret: ClassI32})

	v := f.Emit(0, Instr{Op: IAdd, Args: []Value{f.Blocks[0].Params[0], f.Blocks[0].Params[0]}}, ClassI32)
	f.SetTerm(0, Term{Op: Ret, Rets: []Value{v}})

	s := string(AppendPrint(nil, f))

	assert.Contains(t, s, "func f (i32) i32")
	assert.Contains(t, s, "v1 = iadd v0, v0")
	assert.Contains(t, s, "ret v1")
}

func TestHasFloat(t *testing.T) {
	f := NewFunc("f", Sig{Params: []Class{ClassI32}})
	f.SetTerm(0, Term{Op: Ret})
	assert.False(t, f.HasFloat())

	f.Emit(0, Instr{Op: FConst, F: 1}, ClassF32)
	assert.True(t, f.HasFloat())
}

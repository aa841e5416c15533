// Package ir is the SSA intermediate representation shared by the
// float-level code generator and the fixed-point transform.
//
// Vectors and matrices do not exist here: the frontend flattens them
// into parallel scalar values. Every value is produced exactly once,
// either as a block parameter or as the single result of an
// instruction. Blocks carry typed parameters instead of phi nodes.
package ir

type (
	Value   int32
	BlockID int32
	FuncID  int32

	Op uint8

	// Class is the machine class of a value.
	Class uint8

	ExternKind uint8

	// ExternRef names a function outside the module. TestCase refs are
	// resolvable only by the test harness; the fixed-point transform
	// converts them to User refs.
	ExternRef struct {
		Kind ExternKind
		Name string
	}

	Instr struct {
		Op   Op
		Out  Value // NoValue if the instruction produces nothing
		Args []Value
		Imm  int64      // IConst value, Slot word offset, Load/Store byte offset
		F    float64    // FConst value
		Func FuncID     // Call target
		Ext  *ExternRef // CallExt target
	}

	TermOp uint8

	Term struct {
		Op TermOp

		Cond     Value // Br
		To       BlockID
		ToArgs   []Value
		Else     BlockID
		ElseArgs []Value

		Rets []Value // Ret
	}

	Block struct {
		Params []Value
		Code   []Instr
		Term   Term
	}

	// Sig is the lowered calling-convention signature. Aggregate
	// returns have been rewritten by the frontend into a leading
	// result-pointer parameter (StructReturn).
	Sig struct {
		Params       []Class
		Ret          Class // ClassNone for void
		StructReturn bool
		RetWords     int // words stored through the result pointer
	}

	Func struct {
		Name   string
		Sig    Sig
		Blocks []Block
		Vals   []Class // value id -> class
		Slots  int     // stack frame words reserved via Slot
	}

	Module struct {
		Name  string
		Funcs []*Func
	}
)

const NoValue Value = -1

const (
	ClassNone Class = iota
	ClassI32        // integers, bools (0/1) and fixed-point values
	ClassF32        // float lanes, eliminated by the fixed-point transform
	ClassPtr
)

const (
	ExternUser ExternKind = iota
	ExternTestCase
)

const (
	Jump TermOp = iota
	Br
	Ret
)

const (
	Nop Op = iota

	FConst
	IConst

	FAdd
	FSub
	FMul
	FDiv
	FNeg
	FAbs
	FMin
	FMax
	FFloor
	FCeil
	FTrunc
	FNearest
	FSqrt
	FSin
	FCos
	FExp
	FLog
	FPow
	FAtan2

	FEq
	FNe
	FLt
	FLe
	FGt
	FGe

	IAdd
	ISub
	IMul
	IDivS
	IDivU
	IRemS
	IRemU
	IAnd
	IOr
	IXor
	Shl
	ShrS
	ShrU

	IEq
	INe
	ILtS
	ILeS
	ILtU
	ILeU

	Select

	FToS // float -> int, toward zero
	SToF
	UToF

	Slot   // address of frame slot Imm (word index)
	LoadW  // word at Args[0]+Imm
	StoreW // Args[1] -> word at Args[0]+Imm

	Call
	CallExt
)

// NewFunc allocates a function with its entry block and one parameter
// value per signature parameter.
func NewFunc(name string, sig Sig) *Func {
	f := &Func{
		Name:   name,
		Sig:    sig,
		Blocks: []Block{{}},
	}

	for _, c := range sig.Params {
		v := f.newValue(c)
		f.Blocks[0].Params = append(f.Blocks[0].Params, v)
	}

	return f
}

func (f *Func) newValue(c Class) Value {
	v := Value(len(f.Vals))
	f.Vals = append(f.Vals, c)

	return v
}

func (f *Func) NumValues() int { return len(f.Vals) }

func (f *Func) Class(v Value) Class { return f.Vals[v] }

// AddBlock appends an empty block with the given parameter classes.
func (f *Func) AddBlock(params ...Class) BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, Block{})

	for _, c := range params {
		v := f.newValue(c)
		f.Blocks[id].Params = append(f.Blocks[id].Params, v)
	}

	return id
}

// Emit appends an instruction to block b and allocates its result value.
// Instructions without a result get NoValue.
func (f *Func) Emit(b BlockID, x Instr, out Class) Value {
	x.Out = NoValue
	if out != ClassNone {
		x.Out = f.newValue(out)
	}

	f.Blocks[b].Code = append(f.Blocks[b].Code, x)

	return x.Out
}

func (f *Func) SetTerm(b BlockID, t Term) {
	f.Blocks[b].Term = t
}

// NewSlot reserves n frame words and returns their word offset.
func (f *Func) NewSlot(n int) int {
	off := f.Slots
	f.Slots += n

	return off
}

func (m *Module) AddFunc(f *Func) FuncID {
	id := FuncID(len(m.Funcs))
	m.Funcs = append(m.Funcs, f)

	return id
}

func (m *Module) FuncByName(name string) (FuncID, *Func) {
	for id, f := range m.Funcs {
		if f.Name == name {
			return FuncID(id), f
		}
	}

	return -1, nil
}

// HasFloat reports whether any instruction or value still uses the
// float class. The backend refuses functions where this holds.
func (f *Func) HasFloat() bool {
	for _, c := range f.Vals {
		if c == ClassF32 {
			return true
		}
	}

	return false
}

func (o Op) IsFloat() bool {
	return o >= FConst && o <= FGe && o != IConst || o == SToF || o == UToF || o == FToS
}

func (e ExternRef) String() string {
	if e.Kind == ExternTestCase {
		return "testcase:" + e.Name
	}

	return e.Name
}

package ir

import (
	"fmt"

	"github.com/nikandfor/hacked/hfmt"
)

var opNames = map[Op]string{
	Nop:    "nop",
	FConst: "fconst", IConst: "iconst",
	FAdd: "fadd", FSub: "fsub", FMul: "fmul", FDiv: "fdiv",
	FNeg: "fneg", FAbs: "fabs", FMin: "fmin", FMax: "fmax",
	FFloor: "floor", FCeil: "ceil", FTrunc: "trunc", FNearest: "nearest",
	FSqrt: "sqrt", FSin: "sin", FCos: "cos", FExp: "exp", FLog: "log",
	FPow: "pow", FAtan2: "atan2",
	FEq: "feq", FNe: "fne", FLt: "flt", FLe: "fle", FGt: "fgt", FGe: "fge",
	IAdd: "iadd", ISub: "isub", IMul: "imul",
	IDivS: "idivs", IDivU: "idivu", IRemS: "irems", IRemU: "iremu",
	IAnd: "iand", IOr: "ior", IXor: "ixor",
	Shl: "shl", ShrS: "shrs", ShrU: "shru",
	IEq: "ieq", INe: "ine", ILtS: "ilts", ILeS: "iles", ILtU: "iltu", ILeU: "ileu",
	Select: "select",
	FToS:   "ftos", SToF: "stof", UToF: "utof",
	Slot: "slot", LoadW: "loadw", StoreW: "storew",
	Call: "call", CallExt: "callext",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}

	return fmt.Sprintf("op(%d)", int(o))
}

var classNames = []string{"none", "i32", "f32", "ptr"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}

	return fmt.Sprintf("class(%d)", int(c))
}

// AppendPrint dumps f in a readable form. It is the diagnostic used
// when a definition or verification fails.
func AppendPrint(b []byte, f *Func) []byte {
	b = hfmt.Appendf(b, "func %v %v  slots %d\n", f.Name, sigString(f.Sig), f.Slots)

	for bi := range f.Blocks {
		blk := &f.Blocks[bi]

		b = hfmt.Appendf(b, "b%d(", bi)

		for i, v := range blk.Params {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "v%d %v", v, f.Vals[v])
		}

		b = append(b, "):\n"...)

		for ii := range blk.Code {
			b = appendInstr(b, &blk.Code[ii])
		}

		b = appendTerm(b, &blk.Term)
	}

	return b
}

func appendInstr(b []byte, x *Instr) []byte {
	b = append(b, '\t')

	if x.Out != NoValue {
		b = hfmt.Appendf(b, "v%d = ", x.Out)
	}

	b = hfmt.Appendf(b, "%v", x.Op)

	switch x.Op {
	case FConst:
		b = hfmt.Appendf(b, " %v", x.F)
	case IConst, Slot:
		b = hfmt.Appendf(b, " %d", x.Imm)
	case Call:
		b = hfmt.Appendf(b, " f%d", x.Func)
	case CallExt:
		b = hfmt.Appendf(b, " %v", x.Ext)
	}

	for i, a := range x.Args {
		if i == 0 {
			b = append(b, ' ')
		} else {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "v%d", a)
	}

	if x.Op == LoadW || x.Op == StoreW {
		b = hfmt.Appendf(b, " +%d", x.Imm)
	}

	b = append(b, '\n')

	return b
}

func appendTerm(b []byte, t *Term) []byte {
	switch t.Op {
	case Jump:
		b = hfmt.Appendf(b, "\tjump b%d", t.To)
		b = appendArgs(b, t.ToArgs)
	case Br:
		b = hfmt.Appendf(b, "\tbr v%d, b%d", t.Cond, t.To)
		b = appendArgs(b, t.ToArgs)
		b = hfmt.Appendf(b, ", b%d", t.Else)
		b = appendArgs(b, t.ElseArgs)
	case Ret:
		b = append(b, "\tret"...)

		for i, v := range t.Rets {
			if i != 0 {
				b = append(b, ',')
			}

			b = hfmt.Appendf(b, " v%d", v)
		}
	}

	return append(b, '\n')
}

func appendArgs(b []byte, args []Value) []byte {
	if len(args) == 0 {
		return b
	}

	b = append(b, '(')

	for i, a := range args {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "v%d", a)
	}

	return append(b, ')')
}

func sigString(s Sig) string {
	var b []byte

	b = append(b, '(')

	for i, c := range s.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "%v", c)
	}

	b = append(b, ')')

	if s.StructReturn {
		b = hfmt.Appendf(b, " sret[%d]", s.RetWords)
	} else if s.Ret != ClassNone {
		b = hfmt.Appendf(b, " %v", s.Ret)
	}

	return string(b)
}

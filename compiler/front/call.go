package front

import (
	"lpfx.dev/go/lpfx/compiler/ast"
	"lpfx.dev/go/lpfx/compiler/glsl"
	"lpfx.dev/go/lpfx/compiler/ir"
	"lpfx.dev/go/lpfx/compiler/tp"
)

func (g *gen) call(x *ast.Call) ([]ir.Value, error) {
	info, ok := g.s.calls[x]
	if !ok {
		return nil, glsl.Internal("call %v escaped analysis", x.Name)
	}

	switch info.kind {
	case callConstructor:
		return g.construct(x, info.shape)
	case callBuiltin:
		return g.builtin(x)
	case callLpfx:
		return g.extCall(x, info.lpfx)
	default:
		return g.userCall(x, info.decl)
	}
}

// coerce converts a scalar lane between kinds. Int and uint lanes
// share the bit pattern, only float crossings emit instructions.
func (g *gen) coerce(v ir.Value, from, to tp.Kind) ir.Value {
	if from == to {
		return v
	}

	switch to {
	case tp.Float:
		if from == tp.UInt {
			return g.emit(ir.UToF, ir.ClassF32, v)
		}

		return g.emit(ir.SToF, ir.ClassF32, v)
	case tp.Bool:
		if from == tp.Float {
			return g.emit(ir.FNe, ir.ClassI32, v, g.fconst(0))
		}

		return g.emit(ir.INe, ir.ClassI32, v, g.iconst(0))
	default:
		if from == tp.Float {
			return g.emit(ir.FToS, ir.ClassI32, v)
		}

		return v
	}
}

func (g *gen) construct(x *ast.Call, shape tp.ConstructorShape) ([]ir.Value, error) {
	target := g.s.types[x]

	var lanes [][]ir.Value

	for _, a := range x.Args {
		l, err := g.expr(a)
		if err != nil {
			return nil, err
		}

		lanes = append(lanes, l)
	}

	sk := func(i int) tp.Kind { return g.s.types[x.Args[i]].Scalar().Kind }

	switch shape {
	case tp.ShapeScalarCast:
		return []ir.Value{g.coerce(lanes[0][0], sk(0), target.Kind)}, nil
	case tp.ShapeBroadcast:
		v := g.coerce(lanes[0][0], sk(0), target.Scalar().Kind)

		return g.broadcast([]ir.Value{v}, int(target.N)), nil
	case tp.ShapeVectorResize:
		return lanes[0][:target.N], nil
	case tp.ShapeConcat:
		out := make([]ir.Value, 0, target.N)

		for i, l := range lanes {
			for _, v := range l {
				out = append(out, g.coerce(v, sk(i), target.Scalar().Kind))
			}
		}

		return out, nil
	case tp.ShapeMatIdentity:
		n := int(target.N)
		s := g.coerce(lanes[0][0], sk(0), tp.Float)
		zero := g.fconst(0)

		out := make([]ir.Value, n*n)

		for c := 0; c < n; c++ {
			for r := 0; r < n; r++ {
				if c == r {
					out[c*n+r] = s
				} else {
					out[c*n+r] = zero
				}
			}
		}

		return out, nil
	case tp.ShapeMatColumns:
		out := make([]ir.Value, 0, target.Components())

		for _, l := range lanes {
			out = append(out, l...)
		}

		return out, nil
	case tp.ShapeMatResize:
		n := int(target.N)
		m := int(g.s.types[x.Args[0]].N)
		src := lanes[0]

		one := g.fconst(1)
		zero := g.fconst(0)

		out := make([]ir.Value, n*n)

		for c := 0; c < n; c++ {
			for r := 0; r < n; r++ {
				switch {
				case c < m && r < m:
					out[c*n+r] = src[c*m+r]
				case c == r:
					out[c*n+r] = one
				default:
					out[c*n+r] = zero
				}
			}
		}

		return out, nil
	case tp.ShapeMatScalars:
		out := make([]ir.Value, len(lanes))

		for i, l := range lanes {
			out[i] = g.coerce(l[0], sk(i), tp.Float)
		}

		return out, nil
	default:
		return nil, glsl.Internal("constructor shape %d", shape)
	}
}

var unaryBuiltins = map[string]ir.Op{
	"floor": ir.FFloor,
	"ceil":  ir.FCeil,
	"trunc": ir.FTrunc,
	"round": ir.FNearest,
	"abs":   ir.FAbs,
	"sqrt":  ir.FSqrt,
	"sin":   ir.FSin,
	"cos":   ir.FCos,
	"exp":   ir.FExp,
	"log":   ir.FLog,
}

func (g *gen) builtin(x *ast.Call) ([]ir.Value, error) {
	var args [][]ir.Value

	for _, a := range x.Args {
		l, err := g.expr(a)
		if err != nil {
			return nil, err
		}

		args = append(args, l)
	}

	n := g.s.types[x].Components()

	if op, ok := unaryBuiltins[x.Name]; ok {
		return g.mapLanes(op, args[0]), nil
	}

	switch x.Name {
	case "fract":
		fl := g.mapLanes(ir.FFloor, args[0])

		return g.zipLanes(ir.FSub, args[0], fl), nil
	case "min":
		return g.zipLanes(ir.FMin, args[0], g.broadcast(args[1], n)), nil
	case "max":
		return g.zipLanes(ir.FMax, args[0], g.broadcast(args[1], n)), nil
	case "pow":
		return g.zipLanes(ir.FPow, args[0], args[1]), nil
	case "atan":
		return g.zipLanes(ir.FAtan2, args[0], args[1]), nil
	case "mod":
		return g.modLanes(args[0], g.broadcast(args[1], n)), nil
	case "step":
		e := g.broadcast(args[0], n)
		zero := g.fconst(0)
		one := g.fconst(1)

		out := make([]ir.Value, n)

		for i := 0; i < n; i++ {
			c := g.emit(ir.FGe, ir.ClassI32, args[1][i], e[i])
			out[i] = g.emit(ir.Select, ir.ClassF32, c, one, zero)
		}

		return out, nil
	case "clamp":
		lo := g.broadcast(args[1], n)
		hi := g.broadcast(args[2], n)

		return g.zipLanes(ir.FMin, g.zipLanes(ir.FMax, args[0], lo), hi), nil
	case "mix":
		t := g.broadcast(args[2], n)
		d := g.zipLanes(ir.FSub, args[1], args[0])

		return g.zipLanes(ir.FAdd, args[0], g.zipLanes(ir.FMul, d, t)), nil
	case "smoothstep":
		e0 := g.broadcast(args[0], n)
		e1 := g.broadcast(args[1], n)
		xx := args[2]

		zero := g.broadcast([]ir.Value{g.fconst(0)}, n)
		one := g.broadcast([]ir.Value{g.fconst(1)}, n)

		t := g.zipLanes(ir.FDiv, g.zipLanes(ir.FSub, xx, e0), g.zipLanes(ir.FSub, e1, e0))
		t = g.zipLanes(ir.FMin, g.zipLanes(ir.FMax, t, zero), one)

		three := g.broadcast([]ir.Value{g.fconst(3)}, n)
		two := g.broadcast([]ir.Value{g.fconst(2)}, n)
		k := g.zipLanes(ir.FSub, three, g.zipLanes(ir.FMul, two, t))

		return g.zipLanes(ir.FMul, g.zipLanes(ir.FMul, t, t), k), nil
	case "dot":
		return []ir.Value{g.dotLanes(args[0], args[1])}, nil
	case "length":
		d := g.dotLanes(args[0], args[0])

		return []ir.Value{g.emit(ir.FSqrt, ir.ClassF32, d)}, nil
	case "normalize":
		d := g.dotLanes(args[0], args[0])
		ln := g.emit(ir.FSqrt, ir.ClassF32, d)

		out := make([]ir.Value, len(args[0]))
		for i, v := range args[0] {
			out[i] = g.emit(ir.FDiv, ir.ClassF32, v, ln)
		}

		return out, nil
	case "cross":
		a, b := args[0], args[1]
		term := func(i, j int) ir.Value {
			l := g.emit(ir.FMul, ir.ClassF32, a[i], b[j])
			r := g.emit(ir.FMul, ir.ClassF32, a[j], b[i])

			return g.emit(ir.FSub, ir.ClassF32, l, r)
		}

		return []ir.Value{term(1, 2), term(2, 0), term(0, 1)}, nil
	case "reflect":
		i, nv := args[0], args[1]
		d := g.dotLanes(nv, i)
		k := g.emit(ir.FMul, ir.ClassF32, d, g.fconst(2))

		out := make([]ir.Value, len(i))
		for j := range i {
			out[j] = g.emit(ir.FSub, ir.ClassF32, i[j], g.emit(ir.FMul, ir.ClassF32, k, nv[j]))
		}

		return out, nil
	case "equal", "notEqual", "lessThan", "lessThanEqual", "greaterThan", "greaterThanEqual":
		return g.compareLanes(x.Name, args[0], args[1], g.s.types[x.Args[0]]), nil
	case "any", "all":
		fold := ir.IOr
		if x.Name == "all" {
			fold = ir.IAnd
		}

		acc := args[0][0]
		for _, v := range args[0][1:] {
			acc = g.emit(fold, ir.ClassI32, acc, v)
		}

		return []ir.Value{acc}, nil
	case "not":
		one := g.iconst(1)

		out := make([]ir.Value, len(args[0]))
		for i, v := range args[0] {
			out[i] = g.emit(ir.IXor, ir.ClassI32, v, one)
		}

		return out, nil
	default:
		return nil, glsl.Internal("builtin %v escaped analysis", x.Name)
	}
}

func (g *gen) mapLanes(op ir.Op, a []ir.Value) []ir.Value {
	out := make([]ir.Value, len(a))

	for i, v := range a {
		out[i] = g.emit(op, ir.ClassF32, v)
	}

	return out
}

func (g *gen) zipLanes(op ir.Op, a, b []ir.Value) []ir.Value {
	out := make([]ir.Value, len(a))

	for i := range a {
		out[i] = g.emit(op, ir.ClassF32, a[i], b[i])
	}

	return out
}

// modLanes is GLSL mod: x - y*floor(x/y).
func (g *gen) modLanes(x, y []ir.Value) []ir.Value {
	q := g.zipLanes(ir.FDiv, x, y)
	fl := g.mapLanes(ir.FFloor, q)

	return g.zipLanes(ir.FSub, x, g.zipLanes(ir.FMul, y, fl))
}

func (g *gen) compareLanes(name string, a, b []ir.Value, t tp.Type) []ir.Value {
	flt := t.Kind == tp.Vec
	uns := t.Kind == tp.UVec

	var op ir.Op
	swap := false

	switch name {
	case "equal":
		op = ir.IEq
		if flt {
			op = ir.FEq
		}
	case "notEqual":
		op = ir.INe
		if flt {
			op = ir.FNe
		}
	case "lessThan", "greaterThan":
		swap = name == "greaterThan"

		switch {
		case flt:
			op = ir.FLt
		case uns:
			op = ir.ILtU
		default:
			op = ir.ILtS
		}
	default:
		swap = name == "greaterThanEqual"

		switch {
		case flt:
			op = ir.FLe
		case uns:
			op = ir.ILeU
		default:
			op = ir.ILeS
		}
	}

	out := make([]ir.Value, len(a))

	for i := range a {
		l, r := a[i], b[i]
		if swap {
			l, r = r, l
		}

		out[i] = g.emit(op, ir.ClassI32, l, r)
	}

	return out
}

// extCall emits a call to a float-level test-case external. The
// fixed-point transform rewrites these to the fixed builtins.
func (g *gen) extCall(x *ast.Call, name string) ([]ir.Value, error) {
	rt := g.s.types[x]
	rw := rt.Components()

	var args []ir.Value

	for _, a := range x.Args {
		lanes, err := g.expr(a)
		if err != nil {
			return nil, err
		}

		args = append(args, lanes...)
	}

	ext := &ir.ExternRef{Kind: ir.ExternTestCase, Name: name}

	if rw == 1 {
		v := g.f.Emit(g.b, ir.Instr{Op: ir.CallExt, Ext: ext, Args: args}, laneClass(rt))

		return []ir.Value{v}, nil
	}

	tmp := g.alloc(rt)
	args = append([]ir.Value{tmp.addr}, args...)

	g.f.Emit(g.b, ir.Instr{Op: ir.CallExt, Ext: ext, Args: args}, ir.ClassNone)

	return g.load(tmp), nil
}

func (g *gen) userCall(x *ast.Call, d *tp.FuncDecl) ([]ir.Value, error) {
	rw := 0
	if d.Sig.Return.Kind != tp.Void {
		rw = d.Sig.Return.Components()
	}

	var args []ir.Value
	var retTmp lval

	if rw > 1 {
		retTmp = g.alloc(d.Sig.Return)
		args = append(args, retTmp.addr)
	}

	for i, p := range d.Sig.Params {
		if p.Qual != tp.In {
			l, err := g.lvalue(x.Args[i])
			if err != nil {
				return nil, err
			}

			args = append(args, l.addr)
			continue
		}

		lanes, err := g.expr(x.Args[i])
		if err != nil {
			return nil, err
		}

		args = append(args, lanes...)
	}

	ins := ir.Instr{Op: ir.Call, Func: ir.FuncID(d.ID), Args: args}

	switch {
	case rw == 1:
		v := g.f.Emit(g.b, ins, laneClass(d.Sig.Return))

		return []ir.Value{v}, nil
	case rw > 1:
		g.f.Emit(g.b, ins, ir.ClassNone)

		return g.load(retTmp), nil
	default:
		g.f.Emit(g.b, ins, ir.ClassNone)

		return nil, nil
	}
}

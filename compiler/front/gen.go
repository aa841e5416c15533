package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/ast"
	"lpfx.dev/go/lpfx/compiler/glsl"
	"lpfx.dev/go/lpfx/compiler/ir"
	"lpfx.dev/go/lpfx/compiler/tp"
)

type (
	// lval is an addressable location: a base address plus a word
	// offset per lane. Swizzle stores permute the offsets.
	lval struct {
		typ  tp.Type
		addr ir.Value
		off  []int
	}

	gen struct {
		s *State
		f *ir.Func
		b ir.BlockID

		sret   ir.Value
		ret    tp.Type
		scopes []map[string]lval
	}
)

// Generate lowers every analyzed function into float-level SSA.
// Vectors and matrices are flattened into scalar lanes, locals live in
// frame slots and aggregate returns go through a result pointer.
func (s *State) Generate(ctx context.Context, name string) (m *ir.Module, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: generate", "module", name)
	defer tr.Finish("err", &err)

	m = &ir.Module{Name: name}

	for _, d := range s.reg.Funcs() {
		f, err := s.genFunc(ctx, d)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", d.Name)
		}

		id := m.AddFunc(f)
		if int(id) != int(d.ID) {
			panic("function id drift")
		}
	}

	return m, nil
}

// LowerSig flattens a source signature into machine classes: lanes for
// in parameters, a pointer for out and inout ones, and a leading
// result pointer when the return does not fit a register.
func LowerSig(s tp.Signature) ir.Sig {
	var sig ir.Sig

	rw := 0
	if s.Return.Kind != tp.Void {
		rw = s.Return.Components()
	}

	switch {
	case rw > 1:
		sig.StructReturn = true
		sig.RetWords = rw
		sig.Params = append(sig.Params, ir.ClassPtr)
	case rw == 1:
		sig.Ret = laneClass(s.Return)
	}

	for _, p := range s.Params {
		if p.Qual != tp.In {
			sig.Params = append(sig.Params, ir.ClassPtr)
			continue
		}

		for i := 0; i < p.Type.Components(); i++ {
			sig.Params = append(sig.Params, laneClass(p.Type))
		}
	}

	return sig
}

func laneClass(t tp.Type) ir.Class {
	if t.Scalar().Kind == tp.Float {
		return ir.ClassF32
	}

	return ir.ClassI32
}

func (s *State) genFunc(ctx context.Context, d *tp.FuncDecl) (_ *ir.Func, err error) {
	fn := s.bodies[d.ID]

	f := ir.NewFunc(d.Name, LowerSig(d.Sig))

	g := &gen{
		s:    s,
		f:    f,
		sret: ir.NoValue,
		ret:  d.Sig.Return,
	}

	g.push()
	defer g.pop()

	entry := f.Blocks[0].Params
	pi := 0

	if f.Sig.StructReturn {
		g.sret = entry[0]
		pi = 1
	}

	for _, p := range d.Sig.Params {
		if p.Qual != tp.In {
			g.bind(p.Name, lval{typ: p.Type, addr: entry[pi], off: seq(p.Type.Components())})
			pi++
			continue
		}

		l := g.alloc(p.Type)

		for i := 0; i < p.Type.Components(); i++ {
			g.storeLane(l, i, entry[pi+i])
		}

		pi += p.Type.Components()
		g.bind(p.Name, l)
	}

	term, err := g.block(fn.Body)
	if err != nil {
		return nil, err
	}

	if !term {
		g.implicitReturn()
	}

	if err = ir.Verify(f); err != nil {
		return nil, errors.Wrap(err, "verify")
	}

	return f, nil
}

func (g *gen) push() { g.scopes = append(g.scopes, map[string]lval{}) }
func (g *gen) pop()  { g.scopes = g.scopes[:len(g.scopes)-1] }

func (g *gen) bind(name string, l lval) { g.scopes[len(g.scopes)-1][name] = l }

func (g *gen) find(name string) lval {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if l, ok := g.scopes[i][name]; ok {
			return l
		}
	}

	panic("unbound variable survived analysis: " + name)
}

func (g *gen) emit(op ir.Op, out ir.Class, args ...ir.Value) ir.Value {
	return g.f.Emit(g.b, ir.Instr{Op: op, Args: args}, out)
}

func (g *gen) fconst(v float64) ir.Value {
	return g.f.Emit(g.b, ir.Instr{Op: ir.FConst, F: v}, ir.ClassF32)
}

func (g *gen) iconst(v int64) ir.Value {
	return g.f.Emit(g.b, ir.Instr{Op: ir.IConst, Imm: v}, ir.ClassI32)
}

func (g *gen) alloc(t tp.Type) lval {
	w := t.Components()
	off := g.f.NewSlot(w)
	addr := g.f.Emit(g.b, ir.Instr{Op: ir.Slot, Imm: int64(off)}, ir.ClassPtr)

	return lval{typ: t, addr: addr, off: seq(w)}
}

func (g *gen) loadLane(l lval, i int) ir.Value {
	return g.f.Emit(g.b, ir.Instr{Op: ir.LoadW, Args: []ir.Value{l.addr}, Imm: int64(l.off[i] * 4)}, laneClass(l.typ))
}

func (g *gen) storeLane(l lval, i int, v ir.Value) {
	g.f.Emit(g.b, ir.Instr{Op: ir.StoreW, Args: []ir.Value{l.addr, v}, Imm: int64(l.off[i] * 4)}, ir.ClassNone)
}

func (g *gen) load(l lval) []ir.Value {
	lanes := make([]ir.Value, len(l.off))

	for i := range l.off {
		lanes[i] = g.loadLane(l, i)
	}

	return lanes
}

func (g *gen) store(l lval, lanes []ir.Value) {
	for i, v := range lanes {
		g.storeLane(l, i, v)
	}
}

func seq(n int) []int {
	s := make([]int, n)

	for i := range s {
		s[i] = i
	}

	return s
}

//
// statements
//

func (g *gen) block(b *ast.Block) (bool, error) {
	g.push()
	defer g.pop()

	for _, st := range b.Stmts {
		term, err := g.stmt(st)
		if err != nil || term {
			return term, err
		}
	}

	return false, nil
}

func (g *gen) stmt(st ast.Node) (bool, error) {
	switch st := st.(type) {
	case *ast.Block:
		return g.block(st)
	case *ast.VarDecl:
		l := g.alloc(st.Type)

		if st.Init != nil {
			lanes, err := g.expr(st.Init)
			if err != nil {
				return false, err
			}

			g.store(l, lanes)
		}

		g.bind(st.Name, l)

		return false, nil
	case *ast.Assign:
		return false, g.assign(st)
	case *ast.If:
		return g.ifStmt(st)
	case *ast.For:
		return g.forStmt(st)
	case *ast.Return:
		return true, g.retStmt(st)
	case *ast.ExprStmt:
		_, err := g.expr(st.X)

		return false, err
	default:
		return false, glsl.Internal("unexpected statement %T", st)
	}
}

func (g *gen) assign(st *ast.Assign) error {
	l, err := g.lvalue(st.LHS)
	if err != nil {
		return err
	}

	lanes, err := g.expr(st.RHS)
	if err != nil {
		return err
	}

	if st.Op != "=" {
		cur := g.load(l)
		op := st.Op[:len(st.Op)-1]

		lanes, err = g.binaryLanes(op, cur, l.typ, lanes, g.s.types[st.RHS], l.typ)
		if err != nil {
			return err
		}
	}

	g.store(l, lanes)

	return nil
}

func (g *gen) ifStmt(st *ast.If) (bool, error) {
	cond, err := g.expr(st.Cond)
	if err != nil {
		return false, err
	}

	thenB := g.f.AddBlock()
	elseB := thenB
	if st.Else != nil {
		elseB = g.f.AddBlock()
	}
	contB := g.f.AddBlock()

	if st.Else == nil {
		elseB = contB
	}

	g.f.SetTerm(g.b, ir.Term{Op: ir.Br, Cond: cond[0], To: thenB, Else: elseB})

	g.b = thenB

	tterm, err := g.block(st.Then)
	if err != nil {
		return false, err
	}

	if !tterm {
		g.f.SetTerm(g.b, ir.Term{Op: ir.Jump, To: contB})
	}

	eterm := false

	if st.Else != nil {
		g.b = elseB

		eterm, err = g.stmt(st.Else)
		if err != nil {
			return false, err
		}

		if !eterm {
			g.f.SetTerm(g.b, ir.Term{Op: ir.Jump, To: contB})
		}
	}

	g.b = contB

	if tterm && eterm && st.Else != nil {
		// cont is unreachable, terminate it anyway
		g.implicitReturn()

		return true, nil
	}

	return false, nil
}

func (g *gen) forStmt(st *ast.For) (bool, error) {
	g.push()
	defer g.pop()

	if st.Init != nil {
		if _, err := g.stmt(st.Init); err != nil {
			return false, err
		}
	}

	headB := g.f.AddBlock()
	g.f.SetTerm(g.b, ir.Term{Op: ir.Jump, To: headB})
	g.b = headB

	var cond ir.Value

	if st.Cond != nil {
		lanes, err := g.expr(st.Cond)
		if err != nil {
			return false, err
		}

		cond = lanes[0]
	} else {
		cond = g.iconst(1)
	}

	bodyB := g.f.AddBlock()
	contB := g.f.AddBlock()

	g.f.SetTerm(g.b, ir.Term{Op: ir.Br, Cond: cond, To: bodyB, Else: contB})

	g.b = bodyB

	term, err := g.block(st.Body)
	if err != nil {
		return false, err
	}

	if !term {
		if st.Post != nil {
			if _, err := g.stmt(st.Post); err != nil {
				return false, err
			}
		}

		g.f.SetTerm(g.b, ir.Term{Op: ir.Jump, To: headB})
	}

	g.b = contB

	return false, nil
}

func (g *gen) retStmt(st *ast.Return) error {
	if st.Value == nil {
		g.f.SetTerm(g.b, ir.Term{Op: ir.Ret})

		return nil
	}

	lanes, err := g.expr(st.Value)
	if err != nil {
		return err
	}

	if g.sret != ir.NoValue {
		for i, v := range lanes {
			g.f.Emit(g.b, ir.Instr{Op: ir.StoreW, Args: []ir.Value{g.sret, v}, Imm: int64(i * 4)}, ir.ClassNone)
		}

		g.f.SetTerm(g.b, ir.Term{Op: ir.Ret})

		return nil
	}

	g.f.SetTerm(g.b, ir.Term{Op: ir.Ret, Rets: lanes})

	return nil
}

func (g *gen) implicitReturn() {
	t := ir.Term{Op: ir.Ret}

	if g.sret == ir.NoValue && g.ret.Kind != tp.Void {
		var zero ir.Value

		if laneClass(g.ret) == ir.ClassF32 {
			zero = g.fconst(0)
		} else {
			zero = g.iconst(0)
		}

		t.Rets = []ir.Value{zero}
	}

	g.f.SetTerm(g.b, t)
}

//
// lvalues
//

func (g *gen) lvalue(x ast.Node) (lval, error) {
	switch x := x.(type) {
	case *ast.Ident:
		return g.find(x.Name), nil
	case *ast.Swizzle:
		base, err := g.lvalue(x.X)
		if err != nil {
			return lval{}, err
		}

		t, idx, err := swizzleType(base.typ, x.Sel, x.Pos)
		if err != nil {
			return lval{}, err
		}

		off := make([]int, len(idx))
		for i, j := range idx {
			off[i] = base.off[j]
		}

		return lval{typ: t, addr: base.addr, off: off}, nil
	case *ast.Index:
		base, err := g.lvalue(x.X)
		if err != nil {
			return lval{}, err
		}

		return g.indexLval(x, base)
	default:
		pos, _ := x.Span()

		return lval{}, glsl.New(glsl.CodeNotAssignable, pos, "%T is not assignable", x)
	}
}

func (g *gen) indexLval(x *ast.Index, base lval) (lval, error) {
	et := elemType(base.typ)
	ew := et.Components()

	if k, ok := constIndex(x.Idx); ok {
		if k < 0 || (k+1)*ew > len(base.off) {
			return lval{}, glsl.New(glsl.CodeUnsupported, x.Pos, "index %d out of range for %v", k, base.typ)
		}

		return lval{typ: et, addr: base.addr, off: base.off[k*ew : (k+1)*ew]}, nil
	}

	for i, o := range base.off {
		if o != base.off[0]+i {
			return lval{}, glsl.New(glsl.CodeUnsupported, x.Pos, "dynamic index into a swizzled location")
		}
	}

	idx, err := g.expr(x.Idx)
	if err != nil {
		return lval{}, err
	}

	byteoff := g.emit(ir.IMul, ir.ClassI32, idx[0], g.iconst(int64(ew*4)))
	addr := g.emit(ir.IAdd, ir.ClassPtr, base.addr, byteoff)

	off := make([]int, ew)
	for i := range off {
		off[i] = base.off[0] + i
	}

	return lval{typ: et, addr: addr, off: off}, nil
}

func elemType(t tp.Type) tp.Type {
	switch t.Kind {
	case tp.Array:
		return *t.Elem
	case tp.Mat:
		return tp.VectorOf(tp.FloatT, int(t.N))
	default:
		return t.Scalar()
	}
}

func constIndex(x ast.Node) (int, bool) {
	l, ok := x.(*ast.IntLit)
	if !ok {
		return 0, false
	}

	return int(l.Value), true
}

//
// expressions
//

func (g *gen) expr(x ast.Node) ([]ir.Value, error) {
	switch x := x.(type) {
	case *ast.IntLit:
		return []ir.Value{g.iconst(x.Value)}, nil
	case *ast.FloatLit:
		return []ir.Value{g.fconst(x.Value)}, nil
	case *ast.BoolLit:
		v := int64(0)
		if x.Value {
			v = 1
		}

		return []ir.Value{g.iconst(v)}, nil
	case *ast.Ident:
		return g.load(g.find(x.Name)), nil
	case *ast.Unary:
		return g.unary(x)
	case *ast.Binary:
		return g.binary(x)
	case *ast.Swizzle:
		base, err := g.expr(x.X)
		if err != nil {
			return nil, err
		}

		_, idx, err := swizzleType(g.s.types[x.X], x.Sel, x.Pos)
		if err != nil {
			return nil, err
		}

		lanes := make([]ir.Value, len(idx))
		for i, j := range idx {
			lanes[i] = base[j]
		}

		return lanes, nil
	case *ast.Index:
		return g.index(x)
	case *ast.Call:
		return g.call(x)
	default:
		return nil, glsl.Internal("unexpected expression %T", x)
	}
}

func (g *gen) index(x *ast.Index) ([]ir.Value, error) {
	if l, err := g.lvalue(x); err == nil {
		return g.load(l), nil
	}

	bt := g.s.types[x.X]
	et := elemType(bt)
	ew := et.Components()

	base, err := g.expr(x.X)
	if err != nil {
		return nil, err
	}

	if k, ok := constIndex(x.Idx); ok {
		if k < 0 || (k+1)*ew > len(base) {
			return nil, glsl.New(glsl.CodeUnsupported, x.Pos, "index %d out of range for %v", k, bt)
		}

		return base[k*ew : (k+1)*ew], nil
	}

	// dynamic index into a temporary, spill the base into a slot
	tmp := g.alloc(bt)
	g.store(tmp, base)

	l, err := g.indexLval(x, tmp)
	if err != nil {
		return nil, err
	}

	return g.load(l), nil
}

func (g *gen) unary(x *ast.Unary) ([]ir.Value, error) {
	lanes, err := g.expr(x.X)
	if err != nil {
		return nil, err
	}

	t := g.s.types[x.X]

	switch x.Op {
	case "+":
		return lanes, nil
	case "-":
		for i, v := range lanes {
			if laneClass(t) == ir.ClassF32 {
				lanes[i] = g.emit(ir.FNeg, ir.ClassF32, v)
			} else {
				lanes[i] = g.emit(ir.ISub, ir.ClassI32, g.iconst(0), v)
			}
		}

		return lanes, nil
	case "!":
		return []ir.Value{g.emit(ir.IXor, ir.ClassI32, lanes[0], g.iconst(1))}, nil
	case "~":
		for i, v := range lanes {
			lanes[i] = g.emit(ir.IXor, ir.ClassI32, v, g.iconst(-1))
		}

		return lanes, nil
	default:
		return nil, glsl.Internal("unexpected unary %q", x.Op)
	}
}

func (g *gen) binary(x *ast.Binary) ([]ir.Value, error) {
	if x.Op == "&&" || x.Op == "||" {
		return g.logical(x)
	}

	l, err := g.expr(x.Left)
	if err != nil {
		return nil, err
	}

	r, err := g.expr(x.Right)
	if err != nil {
		return nil, err
	}

	return g.binaryLanes(x.Op, l, g.s.types[x.Left], r, g.s.types[x.Right], g.s.types[x])
}

// logical lowers && and || with short-circuit control flow. The merge
// block takes the result as a parameter.
func (g *gen) logical(x *ast.Binary) ([]ir.Value, error) {
	l, err := g.expr(x.Left)
	if err != nil {
		return nil, err
	}

	rhsB := g.f.AddBlock()
	contB := g.f.AddBlock(ir.ClassI32)

	t := ir.Term{Op: ir.Br, Cond: l[0]}

	if x.Op == "&&" {
		t.To, t.Else = rhsB, contB
		t.ElseArgs = []ir.Value{l[0]}
	} else {
		t.To, t.Else = contB, rhsB
		t.ToArgs = []ir.Value{l[0]}
	}

	g.f.SetTerm(g.b, t)
	g.b = rhsB

	r, err := g.expr(x.Right)
	if err != nil {
		return nil, err
	}

	g.f.SetTerm(g.b, ir.Term{Op: ir.Jump, To: contB, ToArgs: []ir.Value{r[0]}})
	g.b = contB

	return []ir.Value{g.f.Blocks[contB].Params[0]}, nil
}

func (g *gen) binaryLanes(op string, l []ir.Value, lt tp.Type, r []ir.Value, rt tp.Type, res tp.Type) ([]ir.Value, error) {
	switch op {
	case "==", "!=":
		return g.equality(op, l, lt, r)
	case "<", "<=", ">", ">=":
		return []ir.Value{g.compare(op, l[0], r[0], lt)}, nil
	}

	if lt.IsMatrix() || rt.IsMatrix() {
		return g.matBinary(op, l, lt, r, rt, res)
	}

	n := res.Components()
	l = g.broadcast(l, n)
	r = g.broadcast(r, n)

	iop, err := scalarOp(op, res)
	if err != nil {
		return nil, err
	}

	out := make([]ir.Value, n)
	for i := 0; i < n; i++ {
		out[i] = g.emit(iop, laneClass(res), l[i], r[i])
	}

	return out, nil
}

func scalarOp(op string, res tp.Type) (ir.Op, error) {
	if res.Scalar().Kind == tp.Float {
		switch op {
		case "+":
			return ir.FAdd, nil
		case "-":
			return ir.FSub, nil
		case "*":
			return ir.FMul, nil
		case "/":
			return ir.FDiv, nil
		}

		return ir.Nop, glsl.Internal("float op %q", op)
	}

	u := res.Scalar().Kind == tp.UInt

	switch op {
	case "+":
		return ir.IAdd, nil
	case "-":
		return ir.ISub, nil
	case "*":
		return ir.IMul, nil
	case "/":
		if u {
			return ir.IDivU, nil
		}

		return ir.IDivS, nil
	case "%":
		if u {
			return ir.IRemU, nil
		}

		return ir.IRemS, nil
	case "&":
		return ir.IAnd, nil
	case "|":
		return ir.IOr, nil
	case "^":
		return ir.IXor, nil
	case "<<":
		return ir.Shl, nil
	case ">>":
		if u {
			return ir.ShrU, nil
		}

		return ir.ShrS, nil
	}

	return ir.Nop, glsl.Internal("integer op %q", op)
}

func (g *gen) broadcast(lanes []ir.Value, n int) []ir.Value {
	if len(lanes) == n {
		return lanes
	}

	if len(lanes) != 1 {
		panic("broadcast of a non-scalar")
	}

	out := make([]ir.Value, n)
	for i := range out {
		out[i] = lanes[0]
	}

	return out
}

// equality folds lane comparisons: all lanes equal for ==, any lane
// different for !=.
func (g *gen) equality(op string, l []ir.Value, lt tp.Type, r []ir.Value) ([]ir.Value, error) {
	eq := ir.IEq
	ne := ir.INe

	if laneClass(lt) == ir.ClassF32 {
		eq, ne = ir.FEq, ir.FNe
	}

	lane := eq
	fold := ir.IAnd

	if op == "!=" {
		lane = ne
		fold = ir.IOr
	}

	acc := g.emit(lane, ir.ClassI32, l[0], r[0])

	for i := 1; i < len(l); i++ {
		c := g.emit(lane, ir.ClassI32, l[i], r[i])
		acc = g.emit(fold, ir.ClassI32, acc, c)
	}

	return []ir.Value{acc}, nil
}

func (g *gen) compare(op string, l, r ir.Value, t tp.Type) ir.Value {
	if t.Kind == tp.Float {
		var fop ir.Op

		switch op {
		case "<":
			fop = ir.FLt
		case "<=":
			fop = ir.FLe
		case ">":
			fop = ir.FGt
		default:
			fop = ir.FGe
		}

		return g.emit(fop, ir.ClassI32, l, r)
	}

	lt, le := ir.ILtS, ir.ILeS
	if t.Kind == tp.UInt {
		lt, le = ir.ILtU, ir.ILeU
	}

	switch op {
	case "<":
		return g.emit(lt, ir.ClassI32, l, r)
	case "<=":
		return g.emit(le, ir.ClassI32, l, r)
	case ">":
		return g.emit(lt, ir.ClassI32, r, l)
	default:
		return g.emit(le, ir.ClassI32, r, l)
	}
}

// matBinary covers matrix arithmetic. Lanes are column-major:
// lane c*N+r holds column c, row r.
func (g *gen) matBinary(op string, l []ir.Value, lt tp.Type, r []ir.Value, rt tp.Type, res tp.Type) ([]ir.Value, error) {
	if op != "*" {
		// componentwise, possibly with a broadcast scalar
		n := res.Components()
		l = g.broadcast(l, n)
		r = g.broadcast(r, n)

		iop, err := scalarOp(op, tp.FloatT)
		if err != nil {
			return nil, err
		}

		out := make([]ir.Value, n)
		for i := range out {
			out[i] = g.emit(iop, ir.ClassF32, l[i], r[i])
		}

		return out, nil
	}

	switch {
	case lt.IsMatrix() && rt.IsMatrix():
		n := int(lt.N)
		out := make([]ir.Value, n*n)

		for c := 0; c < n; c++ {
			for row := 0; row < n; row++ {
				out[c*n+row] = g.dotLanes(pick(l, row, n, n), pick(r[c*n:], 0, 1, n))
			}
		}

		return out, nil
	case lt.IsMatrix() && rt.Kind == tp.Vec:
		n := int(lt.N)
		out := make([]ir.Value, n)

		for row := 0; row < n; row++ {
			out[row] = g.dotLanes(pick(l, row, n, n), r)
		}

		return out, nil
	case lt.Kind == tp.Vec && rt.IsMatrix():
		n := int(rt.N)
		out := make([]ir.Value, n)

		for c := 0; c < n; c++ {
			out[c] = g.dotLanes(l, r[c*n:c*n+n])
		}

		return out, nil
	case lt.IsMatrix() && rt.Kind == tp.Float:
		return g.scaleLanes(l, r[0]), nil
	case lt.Kind == tp.Float && rt.IsMatrix():
		return g.scaleLanes(r, l[0]), nil
	default:
		return nil, glsl.Internal("matrix op %v %q %v", lt, op, rt)
	}
}

// pick gathers count lanes starting at start with the given stride.
func pick(lanes []ir.Value, start, stride, count int) []ir.Value {
	out := make([]ir.Value, count)

	for i := range out {
		out[i] = lanes[start+i*stride]
	}

	return out
}

func (g *gen) dotLanes(a, b []ir.Value) ir.Value {
	acc := g.emit(ir.FMul, ir.ClassF32, a[0], b[0])

	for i := 1; i < len(a); i++ {
		m := g.emit(ir.FMul, ir.ClassF32, a[i], b[i])
		acc = g.emit(ir.FAdd, ir.ClassF32, acc, m)
	}

	return acc
}

func (g *gen) scaleLanes(lanes []ir.Value, s ir.Value) []ir.Value {
	out := make([]ir.Value, len(lanes))

	for i, v := range lanes {
		out[i] = g.emit(ir.FMul, ir.ClassF32, v, s)
	}

	return out
}

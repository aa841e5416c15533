package front

import (
	"context"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/ast"
	"lpfx.dev/go/lpfx/compiler/glsl"
	"lpfx.dev/go/lpfx/compiler/tp"
)

type (
	callKind uint8

	callInfo struct {
		kind  callKind
		decl  *tp.FuncDecl        // callUser
		shape tp.ConstructorShape // callConstructor
		lpfx  string              // callLpfx: stable test-case name
	}

	varInfo struct {
		typ   tp.Type
		ronly bool
	}

	scope struct {
		vars map[string]varInfo
		par  *scope
	}

	checker struct {
		s   *State
		fn  *ast.Func
		sc  *scope
		ret tp.Type
	}
)

const (
	callUser callKind = iota
	callBuiltin
	callConstructor
	callLpfx
)

// lpfxFuncs are the domain noise/hash/color externals. They compile to
// external calls named lpfx_<name>f, never to inline code.
var lpfxFuncs = map[string]tp.Signature{
	"hash1":   sig(tp.FloatT, tp.FloatT, tp.UIntT),
	"hash2":   sig(tp.FloatT, tp.Vec2T, tp.UIntT),
	"hash3":   sig(tp.FloatT, tp.Vec3T, tp.UIntT),
	"worley2": sig(tp.FloatT, tp.Vec2T, tp.UIntT),
	"worley3": sig(tp.FloatT, tp.Vec3T, tp.UIntT),
	"noise2":  sig(tp.FloatT, tp.Vec2T, tp.UIntT),
	"noise3":  sig(tp.FloatT, tp.Vec3T, tp.UIntT),
	"rgb2hsv": sig(tp.Vec3T, tp.Vec3T),
	"hsv2rgb": sig(tp.Vec3T, tp.Vec3T),
}

func sig(ret tp.Type, params ...tp.Type) tp.Signature {
	s := tp.Signature{Return: ret}

	for _, t := range params {
		s.Params = append(s.Params, tp.Param{Type: t})
	}

	return s
}

// Analyze registers every function signature and then validates each
// body against the declared types.
func (s *State) Analyze(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: analyze")
	defer tr.Finish("err", &err)

	if s.calls == nil {
		s.calls = make(map[*ast.Call]callInfo)
	}

	for _, f := range s.prog {
		for _, fn := range f.Funcs {
			fsig := tp.Signature{Return: fn.Return}

			for _, p := range fn.Params {
				fsig.Params = append(fsig.Params, tp.Param{Name: p.Name, Type: p.Type, Qual: p.Qual})
			}

			d, err := s.reg.Register(fn.Name, fsig)
			if err != nil {
				return glsl.New(glsl.CodeRedeclared, fn.Pos, "%v", err)
			}

			s.bodies[d.ID] = fn
		}
	}

	for _, d := range s.reg.Funcs() {
		fn := s.bodies[d.ID]

		err := s.validateFunc(ctx, fn, d)
		if err != nil {
			return errors.Wrap(err, "func %v", fn.Name)
		}
	}

	return nil
}

func (s *State) validateFunc(ctx context.Context, fn *ast.Func, d *tp.FuncDecl) error {
	c := &checker{
		s:   s,
		fn:  fn,
		ret: fn.Return,
	}

	c.push()
	defer c.pop()

	for _, p := range fn.Params {
		if err := c.declare(p.Name, p.Type, false, p.Pos); err != nil {
			return err
		}
	}

	// the body's top-level declarations share the parameter scope, a
	// parameter name may only be shadowed in a nested block
	for _, st := range fn.Body.Stmts {
		if err := c.stmt(st); err != nil {
			return err
		}
	}

	return nil
}

func (c *checker) push() {
	c.sc = &scope{
		vars: make(map[string]varInfo),
		par:  c.sc,
	}
}

func (c *checker) pop() { c.sc = c.sc.par }

func (c *checker) declare(name string, t tp.Type, ronly bool, pos int) error {
	if _, ok := c.sc.vars[name]; ok {
		return glsl.New(glsl.CodeRedeclared, pos, "%v redeclared in this scope", name)
	}

	if tl := tlog.V("vars"); tl != nil {
		tl.Printw("declare", "func", c.fn.Name, "name", name, "typ", t, "ronly", ronly, "from", loc.Caller(1))
	}

	c.sc.vars[name] = varInfo{typ: t, ronly: ronly}

	return nil
}

func (c *checker) lookup(name string) (varInfo, bool) {
	for sc := c.sc; sc != nil; sc = sc.par {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}

	return varInfo{}, false
}

func (c *checker) block(b *ast.Block) error {
	c.push()
	defer c.pop()

	for _, st := range b.Stmts {
		if err := c.stmt(st); err != nil {
			return err
		}
	}

	return nil
}

func (c *checker) stmt(st ast.Node) error {
	switch st := st.(type) {
	case *ast.Block:
		return c.block(st)
	case *ast.VarDecl:
		if st.Init != nil {
			it, err := c.expr(st.Init)
			if err != nil {
				return err
			}

			if !it.Equal(st.Type) {
				return glsl.New(glsl.CodeTypeMismatch, st.Pos,
					"cannot initialize %v %v with %v", st.Type, st.Name, it)
			}
		} else if st.Const {
			return glsl.New(glsl.CodeTypeMismatch, st.Pos, "const %v lacks an initializer", st.Name)
		}

		return c.declare(st.Name, st.Type, st.Const, st.Pos)
	case *ast.Assign:
		return c.assign(st)
	case *ast.If:
		if err := c.cond(st.Cond); err != nil {
			return err
		}

		if err := c.block(st.Then); err != nil {
			return err
		}

		if st.Else != nil {
			return c.stmt(st.Else)
		}

		return nil
	case *ast.For:
		c.push()
		defer c.pop()

		if st.Init != nil {
			if err := c.stmt(st.Init); err != nil {
				return err
			}
		}

		if st.Cond != nil {
			if err := c.cond(st.Cond); err != nil {
				return err
			}
		}

		if st.Post != nil {
			if err := c.stmt(st.Post); err != nil {
				return err
			}
		}

		return c.block(st.Body)
	case *ast.Return:
		if st.Value == nil {
			if c.ret.Kind != tp.Void {
				return glsl.New(glsl.CodeReturnMismatch, st.Pos, "missing return value, want %v", c.ret)
			}

			return nil
		}

		t, err := c.expr(st.Value)
		if err != nil {
			return err
		}

		if !t.Equal(c.ret) {
			return glsl.New(glsl.CodeReturnMismatch, st.Pos, "returning %v, want %v", t, c.ret)
		}

		return nil
	case *ast.ExprStmt:
		call, ok := st.X.(*ast.Call)
		if !ok {
			return glsl.New(glsl.CodeUnsupported, st.Pos, "expression statement must be a call")
		}

		_, err := c.expr(call)

		return err
	default:
		return glsl.New(glsl.CodeUnsupported, -1, "unsupported statement %T", st)
	}
}

func (c *checker) cond(x ast.Node) error {
	t, err := c.expr(x)
	if err != nil {
		return err
	}

	if t.Kind != tp.Bool {
		pos, _ := x.Span()

		return glsl.New(glsl.CodeCondNotBool, pos, "condition is %v, must be bool", t)
	}

	return nil
}

func (c *checker) assign(st *ast.Assign) error {
	lt, err := c.lvalue(st.LHS)
	if err != nil {
		return err
	}

	rt, err := c.expr(st.RHS)
	if err != nil {
		return err
	}

	if st.Op != "=" {
		op := strings.TrimSuffix(st.Op, "=")

		res, err := tp.BinaryResult(op, lt, rt)
		if err != nil {
			return glsl.New(glsl.CodeBadOperands, st.Pos, "%v", err)
		}

		rt = res
	}

	if !rt.Equal(lt) {
		return glsl.New(glsl.CodeTypeMismatch, st.Pos, "cannot assign %v to %v", rt, lt)
	}

	return nil
}

func (c *checker) lvalue(x ast.Node) (tp.Type, error) {
	switch x := x.(type) {
	case *ast.Ident:
		v, ok := c.lookup(x.Name)
		if !ok {
			return tp.VoidT, glsl.New(glsl.CodeUndeclared, x.Pos, "undeclared variable %v", x.Name)
		}

		if v.ronly {
			return tp.VoidT, glsl.New(glsl.CodeNotAssignable, x.Pos, "cannot assign to const %v", x.Name)
		}

		c.s.types[x] = v.typ

		return v.typ, nil
	case *ast.Swizzle:
		bt, err := c.lvalue(x.X)
		if err != nil {
			return tp.VoidT, err
		}

		t, idx, err := swizzleType(bt, x.Sel, x.Pos)
		if err != nil {
			return tp.VoidT, err
		}

		for i, a := range idx {
			for _, b := range idx[i+1:] {
				if a == b {
					return tp.VoidT, glsl.New(glsl.CodeBadSwizzle, x.Pos,
						"duplicate component in swizzle store %q", x.Sel)
				}
			}
		}

		c.s.types[x] = t

		return t, nil
	case *ast.Index:
		bt, err := c.lvalue(x.X)
		if err != nil {
			return tp.VoidT, err
		}

		return c.indexType(x, bt)
	default:
		pos, _ := x.Span()

		return tp.VoidT, glsl.New(glsl.CodeNotAssignable, pos, "%T is not assignable", x)
	}
}

func (c *checker) expr(x ast.Node) (t tp.Type, err error) {
	defer func() {
		if err == nil {
			c.s.types[x] = t
		}
	}()

	switch x := x.(type) {
	case *ast.IntLit:
		if x.Unsigned {
			return tp.UIntT, nil
		}

		return tp.IntT, nil
	case *ast.FloatLit:
		return tp.FloatT, nil
	case *ast.BoolLit:
		return tp.BoolT, nil
	case *ast.Ident:
		v, ok := c.lookup(x.Name)
		if !ok {
			return tp.VoidT, glsl.New(glsl.CodeUndeclared, x.Pos, "undeclared variable %v", x.Name)
		}

		return v.typ, nil
	case *ast.Unary:
		xt, err := c.expr(x.X)
		if err != nil {
			return tp.VoidT, err
		}

		t, uerr := tp.UnaryResult(x.Op, xt)
		if uerr != nil {
			return tp.VoidT, glsl.New(glsl.CodeBadOperands, x.Pos, "%v", uerr)
		}

		return t, nil
	case *ast.Binary:
		lt, err := c.expr(x.Left)
		if err != nil {
			return tp.VoidT, err
		}

		rt, err := c.expr(x.Right)
		if err != nil {
			return tp.VoidT, err
		}

		t, berr := tp.BinaryResult(x.Op, lt, rt)
		if berr != nil {
			return tp.VoidT, glsl.New(glsl.CodeBadOperands, x.Pos, "%v", berr)
		}

		return t, nil
	case *ast.Swizzle:
		bt, err := c.expr(x.X)
		if err != nil {
			return tp.VoidT, err
		}

		t, _, serr := swizzleType(bt, x.Sel, x.Pos)

		return t, serr
	case *ast.Index:
		bt, err := c.expr(x.X)
		if err != nil {
			return tp.VoidT, err
		}

		return c.indexType(x, bt)
	case *ast.Call:
		return c.call(x)
	default:
		return tp.VoidT, glsl.New(glsl.CodeUnsupported, -1, "unsupported expression %T", x)
	}
}

func (c *checker) indexType(x *ast.Index, bt tp.Type) (tp.Type, error) {
	it, err := c.expr(x.Idx)
	if err != nil {
		return tp.VoidT, err
	}

	if it.Kind != tp.Int && it.Kind != tp.UInt {
		pos, _ := x.Idx.Span()

		return tp.VoidT, glsl.New(glsl.CodeTypeMismatch, pos, "index is %v, must be int or uint", it)
	}

	var t tp.Type

	switch bt.Kind {
	case tp.Array:
		t = *bt.Elem
	case tp.Vec, tp.IVec, tp.UVec, tp.BVec:
		t = bt.Scalar()
	case tp.Mat:
		t = tp.VectorOf(tp.FloatT, int(bt.N))
	default:
		return tp.VoidT, glsl.New(glsl.CodeTypeMismatch, x.Pos, "cannot index %v", bt)
	}

	c.s.types[x] = t

	return t, nil
}

func (c *checker) call(x *ast.Call) (tp.Type, error) {
	args := make([]tp.Type, len(x.Args))

	for i, a := range x.Args {
		t, err := c.expr(a)
		if err != nil {
			return tp.VoidT, err
		}

		args[i] = t
	}

	// constructors
	if target, ok := typeNames[x.Name]; ok {
		shape, err := tp.Constructor(target, args)
		if err != nil {
			return tp.VoidT, glsl.New(glsl.CodeBadConstructor, x.Pos, "%v", err)
		}

		c.s.calls[x] = callInfo{kind: callConstructor, shape: shape}

		return target, nil
	}

	// domain externals
	if fsig, ok := lpfxFuncs[x.Name]; ok {
		if err := matchSig(fsig, args); err != nil {
			return tp.VoidT, glsl.New(glsl.CodeArityMismatch, x.Pos, "%v: %v", x.Name, err)
		}

		c.s.calls[x] = callInfo{kind: callLpfx, lpfx: "lpfx_" + x.Name + "f"}

		return fsig.Return, nil
	}

	// componentwise and reduction builtins
	if t, ok, err := builtinResult(x.Name, args); ok {
		if err != nil {
			return tp.VoidT, glsl.New(glsl.CodeBadOperands, x.Pos, "%v", err)
		}

		c.s.calls[x] = callInfo{kind: callBuiltin}

		return t, nil
	}

	// user functions
	d, err := c.s.reg.Resolve(x.Name, args)
	if err != nil {
		return tp.VoidT, glsl.New(glsl.CodeUndeclared, x.Pos, "%v", err)
	}

	for i, p := range d.Sig.Params {
		if p.Qual == tp.In {
			continue
		}

		if _, ok := x.Args[i].(*ast.Ident); !ok {
			pos, _ := x.Args[i].Span()

			return tp.VoidT, glsl.New(glsl.CodeNotAssignable, pos,
				"argument %d of %v is %v, must be a variable", i, x.Name, p.Qual)
		}
	}

	c.s.calls[x] = callInfo{kind: callUser, decl: d}

	return d.Sig.Return, nil
}

func matchSig(s tp.Signature, args []tp.Type) error {
	if len(args) != len(s.Params) {
		return errors.New("want %d arguments, got %d", len(s.Params), len(args))
	}

	for i, p := range s.Params {
		if !args[i].Equal(p.Type) {
			return errors.New("argument %d is %v, want %v", i, args[i], p.Type)
		}
	}

	return nil
}

var swizzleSets = []string{"xyzw", "rgba", "stpq"}

func swizzleType(base tp.Type, sel string, pos int) (tp.Type, []int, error) {
	if !base.IsVector() {
		return tp.VoidT, nil, glsl.New(glsl.CodeBadSwizzle, pos, "cannot swizzle %v", base)
	}

	if len(sel) < 1 || len(sel) > 4 {
		return tp.VoidT, nil, glsl.New(glsl.CodeBadSwizzle, pos, "bad swizzle %q", sel)
	}

	idx := make([]int, len(sel))

	for i, ch := range sel {
		found := -1

		for _, set := range swizzleSets {
			if j := strings.IndexRune(set, ch); j >= 0 {
				found = j
				break
			}
		}

		if found < 0 || found >= int(base.N) {
			return tp.VoidT, nil, glsl.New(glsl.CodeBadSwizzle, pos,
				"component %q out of range for %v", string(ch), base)
		}

		idx[i] = found
	}

	return tp.VectorOf(base.Scalar(), len(idx)), idx, nil
}

// builtinResult types the componentwise float builtins, the geometric
// functions and the boolean-vector reducers. The second result tells
// whether the name is a builtin at all.
func builtinResult(name string, args []tp.Type) (tp.Type, bool, error) {
	n := len(args)

	arity := func(want int) error {
		if n != want {
			return errors.New("%v takes %d arguments, got %d", name, want, n)
		}

		return nil
	}

	genFloat := func(t tp.Type) bool {
		return t.Kind == tp.Float || t.Kind == tp.Vec
	}

	switch name {
	case "floor", "ceil", "fract", "abs", "sqrt", "sin", "cos", "exp", "log", "trunc", "round":
		if err := arity(1); err != nil {
			return tp.VoidT, true, err
		}

		if !genFloat(args[0]) {
			return tp.VoidT, true, errors.New("%v requires a float operand, got %v", name, args[0])
		}

		return args[0], true, nil
	case "min", "max", "pow", "atan", "mod", "step":
		if err := arity(2); err != nil {
			return tp.VoidT, true, err
		}

		a, b := args[0], args[1]

		switch {
		case !genFloat(a) || !genFloat(b):
			return tp.VoidT, true, errors.New("%v requires float operands, got %v and %v", name, a, b)
		case a.Equal(b):
			return a, true, nil
		case name == "step" && a.Kind == tp.Float:
			// step(float, vecN)
			return b, true, nil
		case name != "step" && name != "pow" && name != "atan" && b.Kind == tp.Float:
			// min/max/mod(vecN, float)
			return a, true, nil
		default:
			return tp.VoidT, true, errors.New("%v operands mismatch: %v and %v", name, a, b)
		}
	case "clamp", "mix", "smoothstep":
		if err := arity(3); err != nil {
			return tp.VoidT, true, err
		}

		a, b, t := args[0], args[1], args[2]

		for _, x := range args {
			if !genFloat(x) {
				return tp.VoidT, true, errors.New("%v requires float operands, got %v", name, x)
			}
		}

		switch name {
		case "clamp":
			if a.Equal(b) && b.Equal(t) || b.Kind == tp.Float && t.Kind == tp.Float {
				return a, true, nil
			}
		case "mix":
			if a.Equal(b) && (t.Equal(a) || t.Kind == tp.Float) {
				return a, true, nil
			}
		case "smoothstep":
			if a.Equal(b) && (a.Equal(t) || a.Kind == tp.Float) {
				return t, true, nil
			}
		}

		return tp.VoidT, true, errors.New("%v operands mismatch: %v", name, args)
	case "dot":
		if err := arity(2); err != nil {
			return tp.VoidT, true, err
		}

		if args[0].Kind != tp.Vec || !args[0].Equal(args[1]) {
			return tp.VoidT, true, errors.New("dot requires matching float vectors, got %v and %v", args[0], args[1])
		}

		return tp.FloatT, true, nil
	case "cross":
		if err := arity(2); err != nil {
			return tp.VoidT, true, err
		}

		if !args[0].Equal(tp.Vec3T) || !args[1].Equal(tp.Vec3T) {
			return tp.VoidT, true, errors.New("cross requires vec3 operands, got %v and %v", args[0], args[1])
		}

		return tp.Vec3T, true, nil
	case "length":
		if err := arity(1); err != nil {
			return tp.VoidT, true, err
		}

		if args[0].Kind != tp.Vec {
			return tp.VoidT, true, errors.New("length requires a float vector, got %v", args[0])
		}

		return tp.FloatT, true, nil
	case "normalize":
		if err := arity(1); err != nil {
			return tp.VoidT, true, err
		}

		if args[0].Kind != tp.Vec {
			return tp.VoidT, true, errors.New("normalize requires a float vector, got %v", args[0])
		}

		return args[0], true, nil
	case "reflect":
		if err := arity(2); err != nil {
			return tp.VoidT, true, err
		}

		if args[0].Kind != tp.Vec || !args[0].Equal(args[1]) {
			return tp.VoidT, true, errors.New("reflect requires matching float vectors, got %v and %v", args[0], args[1])
		}

		return args[0], true, nil
	case "equal", "notEqual", "lessThan", "lessThanEqual", "greaterThan", "greaterThanEqual":
		if err := arity(2); err != nil {
			return tp.VoidT, true, err
		}

		a := args[0]

		if !a.IsVector() || a.Kind == tp.BVec && name != "equal" && name != "notEqual" || !a.Equal(args[1]) {
			return tp.VoidT, true, errors.New("%v requires matching vectors, got %v and %v", name, args[0], args[1])
		}

		return tp.VectorOf(tp.BoolT, int(a.N)), true, nil
	case "any", "all":
		if err := arity(1); err != nil {
			return tp.VoidT, true, err
		}

		if args[0].Kind != tp.BVec {
			return tp.VoidT, true, errors.New("%v requires a bvec, got %v", name, args[0])
		}

		return tp.BoolT, true, nil
	case "not":
		if err := arity(1); err != nil {
			return tp.VoidT, true, err
		}

		if args[0].Kind != tp.BVec {
			return tp.VoidT, true, errors.New("not requires a bvec, got %v", args[0])
		}

		return args[0], true, nil
	}

	return tp.VoidT, false, nil
}

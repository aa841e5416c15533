package front

import (
	"context"
	"strconv"
	"strings"

	"tlog.app/go/errors"

	"lpfx.dev/go/lpfx/compiler/ast"
	"lpfx.dev/go/lpfx/compiler/glsl"
	"lpfx.dev/go/lpfx/compiler/tp"
)

type (
	tokKind uint8

	token struct {
		kind tokKind
		text string
		pos  int
		end  int
	}

	parser struct {
		b    []byte
		base int
		i    int
		tok  token
	}
)

const (
	tEOF tokKind = iota
	tIdent
	tNumber
	tPunct
)

var typeNames = map[string]tp.Type{
	"void": tp.VoidT, "bool": tp.BoolT, "int": tp.IntT, "uint": tp.UIntT, "float": tp.FloatT,
	"vec2": tp.Vec2T, "vec3": tp.Vec3T, "vec4": tp.Vec4T,
	"ivec2": tp.IVec2T, "ivec3": tp.IVec3T, "ivec4": tp.IVec4T,
	"uvec2": tp.UVec2T, "uvec3": tp.UVec3T, "uvec4": tp.UVec4T,
	"bvec2": tp.BVec2T, "bvec3": tp.BVec3T, "bvec4": tp.BVec4T,
	"mat2": tp.Mat2T, "mat3": tp.Mat3T, "mat4": tp.Mat4T,
}

func (s *State) parseFile(ctx context.Context, f file, b []byte) (*ast.File, error) {
	p := &parser{
		b:    b,
		base: f.Base,
		i:    f.Base,
	}

	p.next()

	x := &ast.File{
		Name: f.Name,
	}
	x.Pos = f.Base
	x.End = len(b)

	for p.tok.kind != tEOF {
		fn, err := p.parseFunc()
		if err != nil {
			return nil, err
		}

		x.Funcs = append(x.Funcs, fn)
	}

	return x, nil
}

func (p *parser) errHere(code glsl.Code, format string, args ...any) error {
	e := glsl.New(code, p.tok.pos, format, args...)

	return e.WithSpan(p.b, p.tok.pos, p.tok.end)
}

// next advances to the following token, skipping spaces and comments.
func (p *parser) next() {
	for p.i < len(p.b) {
		switch c := p.b[p.i]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.i++
		case c == '/' && p.i+1 < len(p.b) && p.b[p.i+1] == '/':
			for p.i < len(p.b) && p.b[p.i] != '\n' {
				p.i++
			}
		case c == '/' && p.i+1 < len(p.b) && p.b[p.i+1] == '*':
			p.i += 2
			for p.i+1 < len(p.b) && !(p.b[p.i] == '*' && p.b[p.i+1] == '/') {
				p.i++
			}
			p.i += 2
		default:
			p.scan()
			return
		}
	}

	p.tok = token{kind: tEOF, pos: p.i, end: p.i}
}

func (p *parser) scan() {
	st := p.i
	c := p.b[p.i]

	switch {
	case isIdentStart(c):
		for p.i < len(p.b) && isIdentPart(p.b[p.i]) {
			p.i++
		}

		p.tok = token{kind: tIdent, text: string(p.b[st:p.i]), pos: st, end: p.i}
	case c >= '0' && c <= '9' || c == '.' && p.i+1 < len(p.b) && p.b[p.i+1] >= '0' && p.b[p.i+1] <= '9':
		for p.i < len(p.b) && (isIdentPart(p.b[p.i]) || p.b[p.i] == '.') {
			p.i++
		}

		p.tok = token{kind: tNumber, text: string(p.b[st:p.i]), pos: st, end: p.i}
	default:
		n := 1

		if p.i+1 < len(p.b) {
			two := string(p.b[p.i : p.i+2])

			switch two {
			case "==", "!=", "<=", ">=", "&&", "||", "<<", ">>",
				"+=", "-=", "*=", "/=", "%=", "++", "--":
				n = 2
			}
		}

		p.i += n
		p.tok = token{kind: tPunct, text: string(p.b[st:p.i]), pos: st, end: p.i}
	}
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func (p *parser) is(text string) bool {
	return p.tok.kind == tPunct && p.tok.text == text
}

func (p *parser) eat(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}

	return false
}

func (p *parser) expect(text string) error {
	if !p.eat(text) {
		return p.errHere(glsl.CodeSyntax, "expected %q, got %q", text, p.tok.text)
	}

	return nil
}

func (p *parser) parseType() (tp.Type, bool) {
	if p.tok.kind != tIdent {
		return tp.VoidT, false
	}

	t, ok := typeNames[p.tok.text]
	if !ok {
		return tp.VoidT, false
	}

	p.next()

	return t, true
}

func (p *parser) parseFunc() (*ast.Func, error) {
	pos := p.tok.pos

	ret, ok := p.parseType()
	if !ok {
		return nil, p.errHere(glsl.CodeSyntax, "expected return type, got %q", p.tok.text)
	}

	if p.tok.kind != tIdent {
		return nil, p.errHere(glsl.CodeSyntax, "expected function name, got %q", p.tok.text)
	}

	fn := &ast.Func{
		Name:   p.tok.text,
		Return: ret,
	}
	fn.Pos = pos

	p.next()

	if err := p.expect("("); err != nil {
		return nil, err
	}

	for !p.eat(")") {
		if len(fn.Params) != 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}

		d, err := p.parseParam()
		if err != nil {
			return nil, err
		}

		fn.Params = append(fn.Params, d)
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, errors.Wrap(err, "func %v", fn.Name)
	}

	fn.Body = body
	fn.End = body.End

	return fn, nil
}

func (p *parser) parseParam() (ast.ParamDecl, error) {
	var d ast.ParamDecl

	d.Pos = p.tok.pos
	d.Qual = tp.In

	switch p.tok.text {
	case "in":
		p.next()
	case "out":
		d.Qual = tp.Out
		p.next()
	case "inout":
		d.Qual = tp.InOut
		p.next()
	}

	t, ok := p.parseType()
	if !ok {
		return d, p.errHere(glsl.CodeSyntax, "expected parameter type, got %q", p.tok.text)
	}

	if p.tok.kind != tIdent {
		return d, p.errHere(glsl.CodeSyntax, "expected parameter name, got %q", p.tok.text)
	}

	d.Type = t
	d.Name = p.tok.text
	d.End = p.tok.end

	p.next()

	return d, nil
}

func (p *parser) parseBlock() (*ast.Block, error) {
	b := &ast.Block{}
	b.Pos = p.tok.pos

	if err := p.expect("{"); err != nil {
		return nil, err
	}

	for !p.is("}") {
		if p.tok.kind == tEOF {
			return nil, p.errHere(glsl.CodeSyntax, "unterminated block")
		}

		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		b.Stmts = append(b.Stmts, st)
	}

	b.End = p.tok.end
	p.next()

	return b, nil
}

func (p *parser) parseStmt() (ast.Node, error) {
	switch {
	case p.is("{"):
		return p.parseBlock()
	case p.tok.kind == tIdent && p.tok.text == "if":
		return p.parseIf()
	case p.tok.kind == tIdent && p.tok.text == "for":
		return p.parseFor()
	case p.tok.kind == tIdent && p.tok.text == "return":
		r := &ast.Return{}
		r.Pos = p.tok.pos
		p.next()

		if !p.is(";") {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			r.Value = v
		}

		r.End = p.tok.end

		return r, p.expect(";")
	}

	st, err := p.parseSimpleStmt()
	if err != nil {
		return nil, err
	}

	return st, p.expect(";")
}

// parseSimpleStmt handles declarations, assignments, increments and
// expression statements, without the trailing semicolon (shared by
// for-headers and plain statements).
func (p *parser) parseSimpleStmt() (ast.Node, error) {
	pos := p.tok.pos

	isConst := p.tok.kind == tIdent && p.tok.text == "const"
	if isConst {
		p.next()
	}

	if t, ok := typeNames[p.tok.text]; ok && p.tok.kind == tIdent {
		// lookahead: `vec3 name` is a declaration, `vec3(...)` is a constructor call
		save := *p
		p.next()

		if p.tok.kind == tIdent {
			d := &ast.VarDecl{
				Name:  p.tok.text,
				Type:  t,
				Const: isConst,
			}
			d.Pos = pos

			p.next()

			if p.eat("[") {
				if p.tok.kind != tNumber {
					return nil, p.errHere(glsl.CodeSyntax, "expected array size, got %q", p.tok.text)
				}

				n, err := strconv.Atoi(p.tok.text)
				if err != nil || n <= 0 {
					return nil, p.errHere(glsl.CodeSyntax, "bad array size %q", p.tok.text)
				}

				p.next()

				if err := p.expect("]"); err != nil {
					return nil, err
				}

				d.Type = tp.ArrayOf(t, n)
			}

			if p.eat("=") {
				v, err := p.parseExpr()
				if err != nil {
					return nil, err
				}

				d.Init = v
			}

			d.End = p.tok.pos

			return d, nil
		}

		*p = save
	} else if isConst {
		return nil, p.errHere(glsl.CodeSyntax, "expected type after const, got %q", p.tok.text)
	}

	lhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	switch {
	case p.tok.kind == tPunct && isAssignOp(p.tok.text):
		op := p.tok.text
		p.next()

		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		a := &ast.Assign{LHS: lhs, Op: op, RHS: rhs}
		a.Pos = pos
		a.End = p.tok.pos

		return a, nil
	case p.is("++"), p.is("--"):
		op := "+="
		if p.tok.text == "--" {
			op = "-="
		}

		p.next()

		one := &ast.IntLit{Value: 1}
		one.Pos = pos

		a := &ast.Assign{LHS: lhs, Op: op, RHS: one}
		a.Pos = pos
		a.End = p.tok.pos

		return a, nil
	}

	x := &ast.ExprStmt{X: lhs}
	x.Pos = pos
	x.End = p.tok.pos

	return x, nil
}

func isAssignOp(s string) bool {
	switch s {
	case "=", "+=", "-=", "*=", "/=", "%=":
		return true
	}

	return false
}

func (p *parser) parseIf() (ast.Node, error) {
	x := &ast.If{}
	x.Pos = p.tok.pos

	p.next() // if

	if err := p.expect("("); err != nil {
		return nil, err
	}

	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	x.Cond = cond

	if err := p.expect(")"); err != nil {
		return nil, err
	}

	x.Then, err = p.parseBlock()
	if err != nil {
		return nil, err
	}

	x.End = x.Then.End

	if p.tok.kind == tIdent && p.tok.text == "else" {
		p.next()

		if p.tok.kind == tIdent && p.tok.text == "if" {
			x.Else, err = p.parseIf()
		} else {
			x.Else, err = p.parseBlock()
		}

		if err != nil {
			return nil, err
		}

		_, x.End = x.Else.Span()
	}

	return x, nil
}

func (p *parser) parseFor() (ast.Node, error) {
	x := &ast.For{}
	x.Pos = p.tok.pos

	p.next() // for

	if err := p.expect("("); err != nil {
		return nil, err
	}

	if !p.is(";") {
		init, err := p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}

		x.Init = init
	}

	if err := p.expect(";"); err != nil {
		return nil, err
	}

	if !p.is(";") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		x.Cond = cond
	}

	if err := p.expect(";"); err != nil {
		return nil, err
	}

	if !p.is(")") {
		post, err := p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}

		x.Post = post
	}

	if err := p.expect(")"); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	x.Body = body
	x.End = body.End

	return x, nil
}

// binPrec follows C precedence. 0 means not a binary operator.
func binPrec(op string) int {
	switch op {
	case "||":
		return 1
	case "&&":
		return 2
	case "|":
		return 3
	case "^":
		return 4
	case "&":
		return 5
	case "==", "!=":
		return 6
	case "<", ">", "<=", ">=":
		return 7
	case "<<", ">>":
		return 8
	case "+", "-":
		return 9
	case "*", "/", "%":
		return 10
	}

	return 0
}

func (p *parser) parseExpr() (ast.Node, error) {
	return p.parseBinary(1)
}

func (p *parser) parseBinary(minPrec int) (ast.Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.tok.kind == tPunct {
		prec := binPrec(p.tok.text)
		if prec == 0 || prec < minPrec {
			break
		}

		op := p.tok.text
		pos := p.tok.pos

		p.next()

		rhs, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}

		b := &ast.Binary{Op: op, Left: lhs, Right: rhs}
		b.Pos = pos
		b.End = p.tok.pos

		lhs = b
	}

	return lhs, nil
}

func (p *parser) parseUnary() (ast.Node, error) {
	if p.tok.kind == tPunct {
		switch p.tok.text {
		case "-", "+", "!", "~":
			op := p.tok.text
			pos := p.tok.pos

			p.next()

			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}

			u := &ast.Unary{Op: op, X: x}
			u.Pos = pos
			u.End = p.tok.pos

			return u, nil
		}
	}

	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.eat("."):
			if p.tok.kind != tIdent {
				return nil, p.errHere(glsl.CodeSyntax, "expected component selector, got %q", p.tok.text)
			}

			sw := &ast.Swizzle{X: x, Sel: p.tok.text}
			sw.Pos = p.tok.pos
			sw.End = p.tok.end

			p.next()

			x = sw
		case p.eat("["):
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			ix := &ast.Index{X: x, Idx: idx}
			ix.Pos, _ = x.Span()
			ix.End = p.tok.end

			if err := p.expect("]"); err != nil {
				return nil, err
			}

			x = ix
		default:
			return x, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Node, error) {
	switch {
	case p.eat("("):
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		return x, p.expect(")")
	case p.tok.kind == tNumber:
		return p.parseNumber()
	case p.tok.kind == tIdent:
		name := p.tok.text
		pos, end := p.tok.pos, p.tok.end

		p.next()

		switch name {
		case "true", "false":
			b := &ast.BoolLit{Value: name == "true"}
			b.Pos, b.End = pos, end

			return b, nil
		}

		if !p.is("(") {
			id := &ast.Ident{Name: name}
			id.Pos, id.End = pos, end

			return id, nil
		}

		p.next() // (

		c := &ast.Call{Name: name}
		c.Pos = pos

		for !p.is(")") {
			if len(c.Args) != 0 {
				if err := p.expect(","); err != nil {
					return nil, err
				}
			}

			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			c.Args = append(c.Args, a)
		}

		c.End = p.tok.end
		p.next() // )

		return c, nil
	default:
		return nil, p.errHere(glsl.CodeSyntax, "unexpected token %q", p.tok.text)
	}
}

func (p *parser) parseNumber() (ast.Node, error) {
	t := p.tok
	p.next()

	text := t.text

	switch {
	case strings.ContainsAny(text, ".") || strings.ContainsAny(text, "eE") && !strings.HasPrefix(text, "0x"):
		text = strings.TrimSuffix(text, "f")

		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, glsl.New(glsl.CodeSyntax, t.pos, "bad float literal %q", t.text)
		}

		f := &ast.FloatLit{Value: v}
		f.Pos, f.End = t.pos, t.end

		return f, nil
	default:
		unsigned := strings.HasSuffix(text, "u") || strings.HasSuffix(text, "U")
		text = strings.TrimRight(text, "uU")

		v, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return nil, glsl.New(glsl.CodeSyntax, t.pos, "bad integer literal %q", t.text)
		}

		n := &ast.IntLit{Value: int64(v), Unsigned: unsigned}
		n.Pos, n.End = t.pos, t.end

		return n, nil
	}
}

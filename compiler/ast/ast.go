package ast

import (
	"lpfx.dev/go/lpfx/compiler/tp"
)

type (
	Node interface {
		Span() (pos, end int)
	}

	Base struct {
		Pos int
		End int
	}

	File struct {
		Base

		Name  string
		Funcs []*Func
	}

	Func struct {
		Base

		Name   string
		Params []ParamDecl
		Return tp.Type
		Body   *Block
	}

	ParamDecl struct {
		Base

		Name string
		Type tp.Type
		Qual tp.Qualifier
	}

	Block struct {
		Base

		Stmts []Node
	}

	// VarDecl is `type name = init;` or `const type name = init;`.
	VarDecl struct {
		Base

		Name  string
		Type  tp.Type
		Init  Node // may be nil
		Const bool
	}

	// Assign covers plain and compound assignment. Op is "=", "+=", etc.
	Assign struct {
		Base

		LHS Node
		Op  string
		RHS Node
	}

	If struct {
		Base

		Cond Node
		Then *Block
		Else Node // *Block, *If or nil
	}

	For struct {
		Base

		Init Node // may be nil
		Cond Node // may be nil
		Post Node // may be nil
		Body *Block
	}

	Return struct {
		Base

		Value Node // may be nil
	}

	// ExprStmt is an expression in statement position (calls with out params).
	ExprStmt struct {
		Base

		X Node
	}

	Ident struct {
		Base

		Name string
	}

	IntLit struct {
		Base

		Value    int64
		Unsigned bool
	}

	FloatLit struct {
		Base

		Value float64
	}

	BoolLit struct {
		Base

		Value bool
	}

	Unary struct {
		Base

		Op string
		X  Node
	}

	Binary struct {
		Base

		Op    string
		Left  Node
		Right Node
	}

	// Call covers user calls, builtins and constructors. The analyzer
	// classifies it by name.
	Call struct {
		Base

		Name string
		Args []Node
	}

	// Swizzle is `x.yzx` style component access on a vector.
	Swizzle struct {
		Base

		X   Node
		Sel string
	}

	Index struct {
		Base

		X   Node
		Idx Node
	}
)

func (b Base) Span() (int, int) { return b.Pos, b.End }

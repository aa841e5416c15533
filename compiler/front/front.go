// Package front turns GLSL-subset source text into validated float-IR
// functions: tokenizing and parsing, semantic analysis against the
// type system, and SSA lowering with vectors flattened into scalar
// lanes.
package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/ast"
	"lpfx.dev/go/lpfx/compiler/tp"
)

type (
	State struct {
		b []byte // all files concatenated

		files []file
		prog  []*ast.File

		reg    *tp.Registry
		bodies map[tp.FuncID]*ast.Func
		types  map[ast.Node]tp.Type
		calls  map[*ast.Call]callInfo
	}

	file struct {
		Name string
		Base int
	}
)

func New() *State {
	return &State{
		reg:    tp.NewRegistry(),
		bodies: make(map[tp.FuncID]*ast.Func),
		types:  make(map[ast.Node]tp.Type),
		calls:  make(map[*ast.Call]callInfo),
	}
}

func (s *State) AddFile(ctx context.Context, name string, text []byte) {
	f := file{
		Name: name,
		Base: len(s.b),
	}

	s.b = append(s.b, text...)

	s.files = append(s.files, f)
}

func (s *State) Parse(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: parse", "files", len(s.files))
	defer tr.Finish("err", &err)

	for _, f := range s.files {
		end := len(s.b)

		for _, g := range s.files {
			if g.Base > f.Base && g.Base < end {
				end = g.Base
			}
		}

		x, err := s.parseFile(ctx, f, s.b[:end])
		if err != nil {
			return errors.Wrap(err, "%v", f.Name)
		}

		s.prog = append(s.prog, x)
	}

	return nil
}

// Registry exposes the function table built during analysis.
func (s *State) Registry() *tp.Registry { return s.reg }

// TypeOf reports the type the analyzer assigned to an expression.
func (s *State) TypeOf(x ast.Node) tp.Type { return s.types[x] }

func (s *State) Body(id tp.FuncID) *ast.Func { return s.bodies[id] }

// Package compiler ties the stages together: GLSL-subset source in,
// fixed-point RV32 code out.
package compiler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/back"
	"lpfx.dev/go/lpfx/compiler/fixed"
	"lpfx.dev/go/lpfx/compiler/front"
	"lpfx.dev/go/lpfx/compiler/ir"
	"lpfx.dev/go/lpfx/objfile"
)

type (
	Options struct {
		// ReleaseIR frees per-function IR once it is lowered.
		ReleaseIR bool
	}

	// Result carries everything the stages produced: the fixed-point
	// module, the linked image for the emulator and the relocatable
	// object for offline linking.
	Result struct {
		Module *ir.Module
		Image  *back.Image
		Object []byte
	}
)

func CompileFile(ctx context.Context, name string) (*Result, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, moduleName(name), text, Options{})
}

func moduleName(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func Compile(ctx context.Context, name string, text []byte, opts Options) (res *Result, err error) {
	st := front.New()

	st.AddFile(ctx, name, text)

	err = st.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	err = st.Analyze(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}

	fm, err := st.Generate(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}

	qm, err := fixed.Transform(ctx, fm)
	if err != nil {
		return nil, errors.Wrap(err, "fixed-point transform")
	}

	b := back.NewBuilder(back.Options{ReleaseIR: opts.ReleaseIR})

	for _, f := range qm.Funcs {
		err = b.DefineFunction(ctx, qm, f)
		if err != nil {
			return nil, errors.Wrap(err, "define %v", f.Name)
		}
	}

	var obj bytes.Buffer

	err = objfile.Write(&obj, b.Object())
	if err != nil {
		return nil, errors.Wrap(err, "write object")
	}

	img, err := b.Finalize(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "finalize")
	}

	return &Result{
		Module: qm,
		Image:  img,
		Object: obj.Bytes(),
	}, nil
}

// Check runs the frontend only, for fast validation.
func Check(ctx context.Context, name string, text []byte) error {
	st := front.New()

	st.AddFile(ctx, name, text)

	err := st.Parse(ctx)
	if err != nil {
		return errors.Wrap(err, "parse text")
	}

	return st.Analyze(ctx)
}

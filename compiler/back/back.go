// Package back lowers fixed-point SSA into RV32IM machine code and
// links the result into a flat image for the emulator or an ELF
// relocatable object.
//
// Codegen is deliberately simple: every SSA value lives in a stack
// slot, instructions load operands into temporaries and store the
// result back. Correctness and debuggability over speed, the target
// runs LED patterns at tens of hertz.
package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/asm/rv32"
	"lpfx.dev/go/lpfx/compiler/ir"
	"lpfx.dev/go/lpfx/qmath"
)

type (
	Builder struct {
		opts Options

		text   []byte
		syms   []sym
		byName map[string]int
		relocs []reloc
	}

	Options struct {
		// ReleaseIR drops the IR of each function right after it is
		// lowered, trading diagnostics for memory.
		ReleaseIR bool
	}

	sym struct {
		name string
		off  int
		size int
		f    *ir.Func
	}

	// reloc marks a lui/addi/jalr call site waiting for the absolute
	// address of name.
	reloc struct {
		off  int
		name string
	}

	// Image is a linked program: text placed at Base, an optional
	// initialized RAM segment at DataBase, resolved symbol addresses
	// and the builtin window bindings the host must serve.
	Image struct {
		Text []byte
		Base uint32

		Data     []byte
		DataBase uint32

		Symbols  map[string]uint32
		Builtins map[uint32]qmath.BuiltinId
	}
)

const (
	// TextBase leaves a guard page at address zero, loads and jumps
	// there always trap.
	TextBase = 0x0000_0100

	// BuiltinBase is the host-call window: fetching an instruction
	// from slot id-1 executes the builtin on the host.
	BuiltinBase = 0xF000_0000
)

func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:   opts,
		byName: make(map[string]int),
	}
}

// DefineFunction lowers one function and appends its code. Call
// targets are resolved by name at Finalize, so definition order does
// not matter.
func (b *Builder) DefineFunction(ctx context.Context, m *ir.Module, f *ir.Func) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: define function", "name", f.Name)
	defer tr.Finish("err", &err)

	if _, ok := b.byName[f.Name]; ok {
		return errors.New("duplicate function: %v", f.Name)
	}

	if f.HasFloat() {
		return errors.New("float values survived the fixed-point transform")
	}

	if err = ir.Verify(f); err != nil {
		return errors.Wrap(err, "verify")
	}

	start := len(b.text)

	b.text, err = lower(ctx, b.text, m, f, start, b.addReloc)
	if err != nil {
		if tr.If("dump") {
			tr.Printw("lowering failed", "ir", string(ir.AppendPrint(nil, f)))
		}

		return errors.Wrap(err, "lower")
	}

	s := sym{name: f.Name, off: start, size: len(b.text) - start}
	if !b.opts.ReleaseIR {
		s.f = f
	}

	b.byName[f.Name] = len(b.syms)
	b.syms = append(b.syms, s)

	return nil
}

func (b *Builder) addReloc(off int, name string) {
	b.relocs = append(b.relocs, reloc{off: off, name: name})
}

// Finalize resolves every call site and returns the linked image.
// Unresolved names must be builtins, they bind to the host-call
// window.
func (b *Builder) Finalize(ctx context.Context) (_ *Image, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "back: finalize", "funcs", len(b.syms), "relocs", len(b.relocs))
	defer tr.Finish("err", &err)

	img := &Image{
		Text:     b.text,
		Base:     TextBase,
		Symbols:  make(map[string]uint32, len(b.syms)),
		Builtins: make(map[uint32]qmath.BuiltinId),
	}

	for _, s := range b.syms {
		img.Symbols[s.name] = TextBase + uint32(s.off)
	}

	for _, r := range b.relocs {
		addr, ok := img.Symbols[r.name]
		if !ok {
			id := qmath.LookupBuiltin(r.name)
			if id == qmath.BuiltinInvalid {
				return nil, errors.New("undefined symbol: %v", r.name)
			}

			addr = BuiltinBase + uint32(id-1)*4
			img.Builtins[addr] = id
		}

		patchCall(b.text, r.off, addr)
	}

	return img, nil
}

// patchCall fills a lui/addi/jalr site with an absolute address.
func patchCall(text []byte, off int, addr uint32) {
	hi := addr + 0x800
	lo := int32(addr) << 20 >> 20

	rv32.Patch(text, off, rv32.Lui(rv32.T6, hi))
	rv32.Patch(text, off+4, rv32.Addi(rv32.T6, rv32.T6, lo))
	rv32.Patch(text, off+8, rv32.Jalr(rv32.RA, rv32.T6, 0))
}

type (
	// Object is the unlinked form: raw text with symbol definitions
	// and pending call relocations, ready for the ELF writer.
	Object struct {
		Text   []byte
		Syms   []ObjSym
		Relocs []ObjReloc
	}

	ObjSym struct {
		Name string
		Off  int
		Size int
	}

	ObjReloc struct {
		Off  int
		Name string
	}
)

// Object snapshots the builder for object-file emission. Take it
// before Finalize, linking patches the text in place.
func (b *Builder) Object() *Object {
	o := &Object{
		Text: append([]byte(nil), b.text...),
	}

	for _, s := range b.syms {
		o.Syms = append(o.Syms, ObjSym{Name: s.name, Off: s.off, Size: s.size})
	}

	for _, r := range b.relocs {
		o.Relocs = append(o.Relocs, ObjReloc{Off: r.off, Name: r.name})
	}

	return o
}

// FuncIR returns the retained IR of a defined function, nil after
// ReleaseIR.
func (b *Builder) FuncIR(name string) *ir.Func {
	i, ok := b.byName[name]
	if !ok {
		return nil
	}

	return b.syms[i].f
}

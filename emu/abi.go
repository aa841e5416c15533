package emu

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/ir"
)

type (
	// Kind is the width class of a marshaled value.
	Kind uint8

	// Value is an argument with its width.
	Value struct {
		Kind Kind
		V    uint64
	}

	// Location places one value: a register index into a0-a7, or a
	// byte offset into the outgoing stack area (arguments) or the
	// return area (results) when Reg is -1.
	Location struct {
		Reg   int
		Off   int32
		Words int
	}

	// CallPlan is the ABI placement for one call. Arguments go to
	// a0-a7 with 64-bit values in even-aligned pairs, overflow goes to
	// the stack. Results use a0-a1; once those run out the rest lands
	// in a caller-allocated return area whose pointer is passed in a0,
	// shifting arguments up by one register.
	CallPlan struct {
		Args []Location
		Rets []Location

		StackWords int
		AreaWords  int
	}
)

const (
	I8 Kind = iota
	I16
	I32
	I64
)

func (k Kind) words() int {
	if k == I64 {
		return 2
	}

	return 1
}

// PlanCall computes argument and result placement for a signature.
func PlanCall(args, rets []Kind) CallPlan {
	var p CallPlan

	// results first: they decide whether a0 carries the area pointer
	r := 0

	for _, k := range rets {
		w := k.words()

		if k == I64 && r&1 != 0 {
			r++
		}

		if r+w <= 2 {
			p.Rets = append(p.Rets, Location{Reg: r, Words: w})
			r += w
			continue
		}

		if k == I64 {
			p.AreaWords = (p.AreaWords + 1) &^ 1
		}

		p.Rets = append(p.Rets, Location{Reg: -1, Off: int32(p.AreaWords) * 4, Words: w})
		p.AreaWords += w
	}

	r = 0
	if p.AreaWords > 0 {
		r = 1
	}

	for _, k := range args {
		w := k.words()

		if k == I64 && r&1 != 0 {
			r++
		}

		if r+w <= 8 {
			p.Args = append(p.Args, Location{Reg: r, Words: w})
			r += w
			continue
		}

		r = 8 // once an argument spills, the rest follow

		if k == I64 {
			p.StackWords = (p.StackWords + 1) &^ 1
		}

		p.Args = append(p.Args, Location{Reg: -1, Off: int32(p.StackWords) * 4, Words: w})
		p.StackWords += w
	}

	return p
}

// CallCompiled invokes a function using the backend's own convention:
// plain argument words in a0-a7 then the stack, a single word result
// in a0, aggregates through a result pointer in the first argument.
func (e *Emulator) CallCompiled(ctx context.Context, name string, sig ir.Sig, args []uint32) (_ []uint32, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "emu: call compiled", "name", name)
	defer tr.Finish("err", &err)

	addr, ok := e.img.Symbols[name]
	if !ok {
		return nil, errors.New("undefined function: %v", name)
	}

	top := e.Mem.Top()
	area := uint32(0)
	words := args

	if sig.StructReturn {
		area = top - uint32(sig.RetWords)*4
		top = area
		words = append([]uint32{area}, args...)
	}

	stack := 0
	if len(words) > 8 {
		stack = len(words) - 8
	}

	sp := (top - uint32(stack)*4) &^ 15

	for i, w := range words {
		if i < 8 {
			e.Reg[10+i] = w
			continue
		}

		if err = e.Mem.Store(sp+uint32(i-8)*4, 4, w); err != nil {
			return nil, errors.Wrap(err, "stack arg %d", i)
		}
	}

	e.haltAddr = 4
	e.Reg[1] = e.haltAddr
	e.Reg[2] = sp
	e.PC = addr

	res, err := e.Run(ctx)
	if err != nil {
		return nil, err
	}

	if res == Panic {
		return nil, e.fail(errors.New("guest panic: %v", e.PanicInfo))
	}

	if res != Halted {
		return nil, e.fail(errors.New("guest stopped with %v", res))
	}

	switch {
	case sig.StructReturn:
		out := make([]uint32, sig.RetWords)

		for i := range out {
			out[i], err = e.Mem.Load(area+uint32(i)*4, 4)
			if err != nil {
				return nil, errors.Wrap(err, "result word %d", i)
			}
		}

		return out, nil
	case sig.Ret != ir.ClassNone:
		return []uint32{e.Reg[10]}, nil
	default:
		return nil, nil
	}
}

// CallFunction marshals arguments per the ABI, runs the guest function
// to completion and unmarshals the results.
func (e *Emulator) CallFunction(ctx context.Context, name string, rets []Kind, args ...Value) (_ []uint64, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "emu: call", "name", name)
	defer tr.Finish("err", &err)

	addr, ok := e.img.Symbols[name]
	if !ok {
		return nil, errors.New("undefined function: %v", name)
	}

	kinds := make([]Kind, len(args))
	for i, a := range args {
		kinds[i] = a.Kind
	}

	p := PlanCall(kinds, rets)

	top := e.Mem.Top()
	area := top - uint32(p.AreaWords)*4
	sp := (area - uint32(p.StackWords)*4) &^ 15

	for i, a := range args {
		loc := p.Args[i]

		if loc.Reg >= 0 {
			e.Reg[10+loc.Reg] = uint32(a.V)
			if loc.Words == 2 {
				e.Reg[10+loc.Reg+1] = uint32(a.V >> 32)
			}

			continue
		}

		for w := 0; w < loc.Words; w++ {
			err = e.Mem.Store(sp+uint32(loc.Off)+uint32(w)*4, 4, uint32(a.V>>(32*w)))
			if err != nil {
				return nil, errors.Wrap(err, "stack arg %d", i)
			}
		}
	}

	if p.AreaWords > 0 {
		e.Reg[10] = area
	}

	// halting address sits in the guard page, execution stops before
	// fetching from it
	e.haltAddr = 4
	e.Reg[1] = e.haltAddr
	e.Reg[2] = sp
	e.PC = addr

	res, err := e.Run(ctx)
	if err != nil {
		return nil, err
	}

	if res == Panic {
		return nil, e.fail(errors.New("guest panic: %v", e.PanicInfo))
	}

	if res != Halted {
		return nil, e.fail(errors.New("guest stopped with %v", res))
	}

	out := make([]uint64, len(rets))

	for i, loc := range p.Rets {
		if loc.Reg >= 0 {
			out[i] = uint64(e.Reg[10+loc.Reg])
			if loc.Words == 2 {
				out[i] |= uint64(e.Reg[10+loc.Reg+1]) << 32
			}

			continue
		}

		for w := 0; w < loc.Words; w++ {
			v, err := e.Mem.Load(area+uint32(loc.Off)+uint32(w)*4, 4)
			if err != nil {
				return nil, errors.Wrap(err, "return area")
			}

			out[i] |= uint64(v) << (32 * w)
		}
	}

	return out, nil
}

package emu

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/back"
	"lpfx.dev/go/lpfx/qmath"
)

type (
	Emulator struct {
		Mem *Memory
		Reg [32]uint32
		PC  uint32

		img *back.Image

		// haltAddr stops execution when reached, it is the return
		// address planted by CallFunction.
		haltAddr uint32

		// MaxSteps bounds a single run, zero means DefaultMaxSteps.
		MaxSteps int

		// TrapCode is the RISC-V cause of the last Trap.
		TrapCode uint32

		// PanicInfo is the message of the last guest Panic.
		PanicInfo string
	}

	StepResult uint8

	// Error carries the failure plus a register snapshot for
	// diagnostics.
	Error struct {
		Err  error
		PC   uint32
		Regs [32]uint32
	}
)

const (
	Continue StepResult = iota
	Halted
	Trap  // ebreak, TrapCode tells the cause
	Panic // guest-reported fatal error, see PanicInfo
)

// CauseBreakpoint is the mcause value an ebreak trap carries.
const CauseBreakpoint = 3

const DefaultMaxSteps = 50_000_000

func (r StepResult) String() string {
	switch r {
	case Continue:
		return "continue"
	case Halted:
		return "halted"
	case Trap:
		return "trap"
	case Panic:
		return "panic"
	default:
		return "unknown"
	}
}

func New(img *back.Image, ramSize int) *Emulator {
	if ramSize <= 0 {
		ramSize = DefaultRAMSize
	}

	if end := int(img.DataBase-RAMBase) + len(img.Data); len(img.Data) != 0 && end > ramSize {
		ramSize = end
	}

	e := &Emulator{
		Mem: NewMemory(img.Text, img.Base, ramSize),
		img: img,
	}

	if len(img.Data) != 0 {
		copy(e.Mem.ram[img.DataBase-RAMBase:], img.Data)
	}

	e.Reg[2] = e.Mem.Top()

	return e
}

func (e *Emulator) fail(err error) error {
	return &Error{Err: err, PC: e.PC, Regs: e.Reg}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (pc %#x, ra %#x, sp %#x)", e.Err, e.PC, e.Regs[1], e.Regs[2])
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Emulator) setReg(r uint32, v uint32) {
	if r != 0 {
		e.Reg[r] = v
	}
}

// Step executes one instruction or one host builtin.
func (e *Emulator) Step() (StepResult, error) {
	if e.PC == e.haltAddr && e.haltAddr != 0 {
		return Halted, nil
	}

	if e.PC >= back.BuiltinBase {
		return e.hostCall()
	}

	raw, err := e.Mem.Fetch(e.PC)
	if err != nil {
		return Continue, e.fail(err)
	}

	if raw&3 != 3 {
		w, sz, err := expand(uint16(raw))
		if err != nil {
			return Continue, e.fail(err)
		}

		return e.exec(w, sz)
	}

	return e.exec(raw, 4)
}

// Run steps until halt, trap or failure.
func (e *Emulator) Run(ctx context.Context) (StepResult, error) {
	max := e.MaxSteps
	if max == 0 {
		max = DefaultMaxSteps
	}

	for i := 0; i < max; i++ {
		r, err := e.Step()
		if err != nil || r != Continue {
			return r, err
		}
	}

	return Continue, e.fail(errors.New("step limit reached"))
}

// hostCall runs the builtin bound to the current pc and returns to ra.
func (e *Emulator) hostCall() (StepResult, error) {
	id, ok := e.img.Builtins[e.PC]
	if !ok {
		return Continue, e.fail(errors.New("jump into unbound host window slot %#x", e.PC))
	}

	tlog.V("hostcall").Printw("host call", "id", id, "name", id.Name(), "pc", e.PC)

	aw := id.ArgWords()
	args := make([]int32, aw)

	base := 10 // a0
	ptr := uint32(0)

	if id.StructReturn() {
		ptr = e.Reg[10]
		base = 11
	}

	for i := 0; i < aw; i++ {
		args[i] = int32(e.Reg[base+i])
	}

	res := qmath.Invoke(id, args)
	if res == nil {
		return Continue, e.fail(errors.New("builtin %v dispatch failed", id))
	}

	if id.StructReturn() {
		for i, v := range res {
			if err := e.Mem.Store(ptr+uint32(i)*4, 4, uint32(v)); err != nil {
				return Continue, e.fail(errors.Wrap(err, "builtin %v result", id))
			}
		}
	} else {
		e.setReg(10, uint32(res[0]))
	}

	e.PC = e.Reg[1]

	return Continue, nil
}

func (e *Emulator) exec(w uint32, size uint32) (StepResult, error) {
	rd := w >> 7 & 31
	rs1 := w >> 15 & 31
	rs2 := w >> 20 & 31
	f3 := w >> 12 & 7
	f7 := w >> 25

	a := e.Reg[rs1]
	b := e.Reg[rs2]

	next := e.PC + size

	switch w & 0x7f {
	case 0x37: // lui
		e.setReg(rd, w&0xfffff000)
	case 0x17: // auipc
		e.setReg(rd, e.PC+w&0xfffff000)
	case 0x6f: // jal
		e.setReg(rd, next)
		e.PC = e.PC + immJ(w)

		return Continue, nil
	case 0x67: // jalr
		if f3 != 0 {
			return Continue, e.fail(errors.New("invalid instruction %#x", w))
		}

		t := (a + immI(w)) &^ 1

		e.setReg(rd, next)
		e.PC = t

		return Continue, nil
	case 0x63: // branches
		taken := false

		switch f3 {
		case 0:
			taken = a == b
		case 1:
			taken = a != b
		case 4:
			taken = int32(a) < int32(b)
		case 5:
			taken = int32(a) >= int32(b)
		case 6:
			taken = a < b
		case 7:
			taken = a >= b
		default:
			return Continue, e.fail(errors.New("invalid instruction %#x", w))
		}

		if taken {
			e.PC += immB(w)
		} else {
			e.PC = next
		}

		return Continue, nil
	case 0x03: // loads
		addr := a + immI(w)

		var v uint32
		var err error

		switch f3 {
		case 0: // lb
			v, err = e.Mem.Load(addr, 1)
			v = uint32(int32(v<<24) >> 24)
		case 1: // lh
			v, err = e.Mem.Load(addr, 2)
			v = uint32(int32(v<<16) >> 16)
		case 2: // lw
			v, err = e.Mem.Load(addr, 4)
		case 4: // lbu
			v, err = e.Mem.Load(addr, 1)
		case 5: // lhu
			v, err = e.Mem.Load(addr, 2)
		default:
			return Continue, e.fail(errors.New("invalid instruction %#x", w))
		}

		if err != nil {
			return Continue, e.fail(err)
		}

		e.setReg(rd, v)
	case 0x23: // stores
		addr := a + immS(w)

		var err error

		switch f3 {
		case 0:
			err = e.Mem.Store(addr, 1, b)
		case 1:
			err = e.Mem.Store(addr, 2, b)
		case 2:
			err = e.Mem.Store(addr, 4, b)
		default:
			return Continue, e.fail(errors.New("invalid instruction %#x", w))
		}

		if err != nil {
			return Continue, e.fail(err)
		}
	case 0x13: // op-imm
		imm := immI(w)

		var v uint32

		switch f3 {
		case 0:
			v = a + imm
		case 1:
			if f7 != 0 {
				return Continue, e.fail(errors.New("invalid instruction %#x", w))
			}

			v = a << (imm & 31)
		case 2:
			v = ltu(int32(a) < int32(imm))
		case 3:
			v = ltu(a < imm)
		case 4:
			v = a ^ imm
		case 5:
			switch f7 {
			case 0:
				v = a >> (imm & 31)
			case 0x20:
				v = uint32(int32(a) >> (imm & 31))
			default:
				return Continue, e.fail(errors.New("invalid instruction %#x", w))
			}
		case 6:
			v = a | imm
		case 7:
			v = a & imm
		}

		e.setReg(rd, v)
	case 0x33: // op
		v, err := alu(f3, f7, a, b)
		if err != nil {
			return Continue, e.fail(err)
		}

		e.setReg(rd, v)
	case 0x73: // system
		switch w {
		case 0x00100073: // ebreak
			e.TrapCode = CauseBreakpoint

			return Trap, nil
		case 0x00000073:
			// ecall reports a guest panic, a0 points at the message
			// and a1 is its length
			e.PanicInfo = e.guestString(e.Reg[10], e.Reg[11])

			return Panic, nil
		}

		return Continue, e.fail(errors.New("invalid instruction %#x", w))
	default:
		return Continue, e.fail(errors.New("invalid instruction %#x", w))
	}

	e.PC = next

	return Continue, nil
}

func alu(f3, f7, a, b uint32) (uint32, error) {
	switch {
	case f7 == 0x01: // M extension
		switch f3 {
		case 0:
			return a * b, nil
		case 1:
			return uint32(int64(int32(a)) * int64(int32(b)) >> 32), nil
		case 2:
			return uint32(int64(int32(a)) * int64(b) >> 32), nil
		case 3:
			return uint32(uint64(a) * uint64(b) >> 32), nil
		case 4: // div
			switch {
			case b == 0:
				return ^uint32(0), nil
			case int32(a) == -1<<31 && int32(b) == -1:
				return a, nil
			default:
				return uint32(int32(a) / int32(b)), nil
			}
		case 5: // divu
			if b == 0 {
				return ^uint32(0), nil
			}

			return a / b, nil
		case 6: // rem
			switch {
			case b == 0:
				return a, nil
			case int32(a) == -1<<31 && int32(b) == -1:
				return 0, nil
			default:
				return uint32(int32(a) % int32(b)), nil
			}
		default: // remu
			if b == 0 {
				return a, nil
			}

			return a % b, nil
		}
	case f7 == 0:
		switch f3 {
		case 0:
			return a + b, nil
		case 1:
			return a << (b & 31), nil
		case 2:
			return ltu(int32(a) < int32(b)), nil
		case 3:
			return ltu(a < b), nil
		case 4:
			return a ^ b, nil
		case 5:
			return a >> (b & 31), nil
		case 6:
			return a | b, nil
		default:
			return a & b, nil
		}
	case f7 == 0x20 && f3 == 0:
		return a - b, nil
	case f7 == 0x20 && f3 == 5:
		return uint32(int32(a) >> (b & 31)), nil
	}

	return 0, errors.New("invalid alu encoding f3=%d f7=%#x", f3, f7)
}

// guestString copies a byte string out of guest memory, best effort:
// a bad pointer or an absurd length yields an empty message, not an
// error on top of the panic itself.
func (e *Emulator) guestString(addr, n uint32) string {
	if n == 0 || n > 4096 {
		return ""
	}

	b := make([]byte, n)

	for i := range b {
		v, err := e.Mem.Load(addr+uint32(i), 1)
		if err != nil {
			return ""
		}

		b[i] = byte(v)
	}

	return string(b)
}

func ltu(c bool) uint32 {
	if c {
		return 1
	}

	return 0
}

func immI(w uint32) uint32 { return uint32(int32(w) >> 20) }

func immS(w uint32) uint32 {
	return uint32(int32(w)>>25<<5) | w>>7&31
}

func immB(w uint32) uint32 {
	return uint32(int32(w)>>31<<12) | w>>25&0x3f<<5 | w>>8&0xf<<1 | w>>7&1<<11
}

func immJ(w uint32) uint32 {
	return uint32(int32(w)>>31<<20) | w>>21&0x3ff<<1 | w>>20&1<<11 | w>>12&0xff<<12
}

// Package emu executes RV32IMC code produced by the backend. It is a
// plain interpreter with a tiny memory map: read-only text at the
// bottom, RAM high, and a host-call window through which fixed-point
// builtins run natively.
package emu

import (
	"tlog.app/go/errors"
)

type (
	// Memory is the guest address space. Text is mapped at its link
	// base and never writable, RAM sits at RAMBase. The first page
	// stays unmapped so null pointers fault.
	Memory struct {
		text     []byte
		textBase uint32

		ram []byte
	}

	AccessKind uint8
)

const (
	RAMBase        = 0x8000_0000
	DefaultRAMSize = 256 << 10

	guardSize = 0x100
)

const (
	AccessLoad AccessKind = iota
	AccessStore
	AccessFetch
)

func NewMemory(text []byte, textBase uint32, ramSize int) *Memory {
	if ramSize <= 0 {
		ramSize = DefaultRAMSize
	}

	return &Memory{
		text:     text,
		textBase: textBase,
		ram:      make([]byte, ramSize),
	}
}

// Top is the initial stack pointer, one past the last RAM byte.
func (m *Memory) Top() uint32 { return RAMBase + uint32(len(m.ram)) }

func (m *Memory) slice(addr, size uint32, k AccessKind) ([]byte, error) {
	if addr < guardSize {
		return nil, errors.New("null access at %#x", addr)
	}

	if addr&(size-1) != 0 {
		return nil, errors.New("unaligned %d-byte access at %#x", size, addr)
	}

	if addr >= m.textBase && addr+size <= m.textBase+uint32(len(m.text)) {
		if k == AccessStore {
			return nil, errors.New("store to read-only text at %#x", addr)
		}

		off := addr - m.textBase

		return m.text[off : off+size], nil
	}

	if addr >= RAMBase && addr+size <= RAMBase+uint32(len(m.ram)) {
		off := addr - RAMBase

		return m.ram[off : off+size], nil
	}

	return nil, errors.New("access outside mapped memory at %#x", addr)
}

func (m *Memory) Load(addr, size uint32) (uint32, error) {
	b, err := m.slice(addr, size, AccessLoad)
	if err != nil {
		return 0, err
	}

	return get(b, size), nil
}

func (m *Memory) Store(addr, size, v uint32) error {
	b, err := m.slice(addr, size, AccessStore)
	if err != nil {
		return err
	}

	for i := uint32(0); i < size; i++ {
		b[i] = byte(v >> (8 * i))
	}

	return nil
}

// Fetch reads an instruction parcel. Only 2-byte alignment is
// required, compressed instructions may straddle word boundaries.
func (m *Memory) Fetch(addr uint32) (uint32, error) {
	lo, err := m.fetch16(addr)
	if err != nil {
		return 0, err
	}

	if lo&3 != 3 {
		return lo, nil
	}

	hi, err := m.fetch16(addr + 2)
	if err != nil {
		return 0, err
	}

	return hi<<16 | lo, nil
}

func (m *Memory) fetch16(addr uint32) (uint32, error) {
	if addr&1 != 0 {
		return 0, errors.New("misaligned fetch at %#x", addr)
	}

	b, err := m.slice(addr, 2, AccessFetch)
	if err != nil {
		return 0, errors.Wrap(err, "fetch")
	}

	return get(b, 2), nil
}

func get(b []byte, size uint32) uint32 {
	v := uint32(0)

	for i := uint32(0); i < size; i++ {
		v |= uint32(b[i]) << (8 * i)
	}

	return v
}

// Package objfile reads and writes ELF32 relocatable objects for the
// RV32 target. The writer emits one .text section with absolute
// hi/lo relocation pairs for call sites, the loader places such an
// object and links builtin calls to the host window.
package objfile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"

	"tlog.app/go/errors"

	"lpfx.dev/go/lpfx/compiler/back"
)

type (
	ehdr struct {
		Ident     [16]byte
		Type      uint16
		Machine   uint16
		Version   uint32
		Entry     uint32
		Phoff     uint32
		Shoff     uint32
		Flags     uint32
		Ehsize    uint16
		Phentsize uint16
		Phnum     uint16
		Shentsize uint16
		Shnum     uint16
		Shstrndx  uint16
	}

	shdr struct {
		Name      uint32
		Type      uint32
		Flags     uint32
		Addr      uint32
		Off       uint32
		Size      uint32
		Link      uint32
		Info      uint32
		Addralign uint32
		Entsize   uint32
	}

	sym32 struct {
		Name  uint32
		Value uint32
		Size  uint32
		Info  uint8
		Other uint8
		Shndx uint16
	}

	rela32 struct {
		Off    uint32
		Info   uint32
		Addend int32
	}

	strtab struct {
		b   []byte
		off map[string]uint32
	}
)

func newStrtab() *strtab {
	return &strtab{b: []byte{0}, off: map[string]uint32{"": 0}}
}

func (s *strtab) add(name string) uint32 {
	if off, ok := s.off[name]; ok {
		return off
	}

	off := uint32(len(s.b))
	s.b = append(s.b, name...)
	s.b = append(s.b, 0)
	s.off[name] = off

	return off
}

// Write emits o as an ELF32 little-endian RISC-V relocatable object.
func Write(w io.Writer, o *back.Object) error {
	names := newStrtab()
	shnames := newStrtab()

	// symbol table: null, .text section, defined funcs, externs
	syms := []sym32{{}, {Info: uint8(elf.STT_SECTION), Shndx: 1}}
	symIdx := make(map[string]uint32)

	for _, s := range o.Syms {
		symIdx[s.Name] = uint32(len(syms))
		syms = append(syms, sym32{
			Name:  names.add(s.Name),
			Value: uint32(s.Off),
			Size:  uint32(s.Size),
			Info:  uint8(elf.STB_GLOBAL)<<4 | uint8(elf.STT_FUNC),
			Shndx: 1,
		})
	}

	for _, r := range o.Relocs {
		if _, ok := symIdx[r.Name]; ok {
			continue
		}

		symIdx[r.Name] = uint32(len(syms))
		syms = append(syms, sym32{
			Name: names.add(r.Name),
			Info: uint8(elf.STB_GLOBAL)<<4 | uint8(elf.STT_NOTYPE),
		})
	}

	var relas []rela32

	for _, r := range o.Relocs {
		si := symIdx[r.Name]

		relas = append(relas,
			rela32{Off: uint32(r.Off), Info: si<<8 | uint32(elf.R_RISCV_HI20)},
			rela32{Off: uint32(r.Off) + 4, Info: si<<8 | uint32(elf.R_RISCV_LO12_I)},
		)
	}

	var symbuf, relabuf bytes.Buffer

	for _, s := range syms {
		if err := binary.Write(&symbuf, binary.LittleEndian, s); err != nil {
			return err
		}
	}

	for _, r := range relas {
		if err := binary.Write(&relabuf, binary.LittleEndian, r); err != nil {
			return err
		}
	}

	type section struct {
		h shdr
		b []byte
	}

	sections := []section{
		{}, // null
		{h: shdr{
			Name:      shnames.add(".text"),
			Type:      uint32(elf.SHT_PROGBITS),
			Flags:     uint32(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Addralign: 4,
		}, b: o.Text},
		{h: shdr{
			Name:      shnames.add(".rela.text"),
			Type:      uint32(elf.SHT_RELA),
			Link:      3, // .symtab
			Info:      1, // .text
			Addralign: 4,
			Entsize:   12,
		}, b: relabuf.Bytes()},
		{h: shdr{
			Name:      shnames.add(".symtab"),
			Type:      uint32(elf.SHT_SYMTAB),
			Link:      4, // .strtab
			Info:      2, // first global
			Addralign: 4,
			Entsize:   16,
		}, b: symbuf.Bytes()},
		{h: shdr{
			Name:      shnames.add(".strtab"),
			Type:      uint32(elf.SHT_STRTAB),
			Addralign: 1,
		}, b: names.b},
		{h: shdr{
			Name:      shnames.add(".shstrtab"),
			Type:      uint32(elf.SHT_STRTAB),
			Addralign: 1,
		}, b: shnames.b},
	}

	off := uint32(52) // ehdr size

	for i := range sections[1:] {
		s := &sections[1+i]

		off = (off + 3) &^ 3
		s.h.Off = off
		s.h.Size = uint32(len(s.b))
		off += s.h.Size
	}

	shoff := (off + 3) &^ 3

	h := ehdr{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(elf.EM_RISCV),
		Version:   1,
		Shoff:     shoff,
		Ehsize:    52,
		Shentsize: 40,
		Shnum:     uint16(len(sections)),
		Shstrndx:  uint16(len(sections) - 1),
	}

	copy(h.Ident[:], elf.ELFMAG)
	h.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	h.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	h.Ident[elf.EI_VERSION] = 1

	var out bytes.Buffer

	if err := binary.Write(&out, binary.LittleEndian, h); err != nil {
		return err
	}

	for _, s := range sections[1:] {
		pad(&out, int(s.h.Off))
		out.Write(s.b)
	}

	pad(&out, int(shoff))

	for _, s := range sections {
		if err := binary.Write(&out, binary.LittleEndian, s.h); err != nil {
			return err
		}
	}

	_, err := w.Write(out.Bytes())

	return errors.Wrap(err, "write")
}

func pad(b *bytes.Buffer, to int) {
	for b.Len() < to {
		b.WriteByte(0)
	}
}

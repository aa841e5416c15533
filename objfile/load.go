package objfile

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler/back"
	"lpfx.dev/go/lpfx/emu"
	"lpfx.dev/go/lpfx/qmath"
)

type (
	// LoadInfo is the result of loading: the linked image plus what
	// was found on the way, for diagnostics and tooling.
	LoadInfo struct {
		Image *back.Image

		Funcs   []string
		Externs []string
		Skipped []string // non-loadable sections, debug info and the like
	}
)

// Load links a relocatable object produced by Write (or a compatible
// toolchain) into an executable image. It goes through five stages:
// parse the container, select loadable sections, place them, resolve
// symbols and apply relocations.
func Load(ctx context.Context, data []byte) (_ *LoadInfo, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "objfile: load", "size", len(data))
	defer tr.Finish("err", &err)

	// stage 1: parse
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	defer f.Close()

	if f.Class != elf.ELFCLASS32 || f.Data != elf.ELFDATA2LSB || f.Machine != elf.EM_RISCV {
		return nil, errors.New("not a little-endian ELF32 RISC-V object")
	}

	info := &LoadInfo{}

	// stage 2: select sections. Executable text goes to ROM, other
	// allocatable progbits/nobits go to RAM, debug and metadata
	// sections are recorded and skipped.
	var text *elf.Section
	textIdx := -1

	var dataIdx []int

	for i, s := range f.Sections {
		switch {
		case s.Flags&elf.SHF_ALLOC == 0 || s.Type != elf.SHT_PROGBITS && s.Type != elf.SHT_NOBITS:
			if s.Name != "" && s.Type != elf.SHT_SYMTAB && s.Type != elf.SHT_STRTAB && s.Type != elf.SHT_RELA {
				info.Skipped = append(info.Skipped, s.Name)
			}
		case s.Flags&elf.SHF_EXECINSTR != 0:
			if text != nil {
				return nil, errors.New("multiple text sections")
			}

			text, textIdx = s, i
		case strings.HasPrefix(s.Name, ".debug") || strings.HasPrefix(s.Name, ".zdebug"):
			info.Skipped = append(info.Skipped, s.Name)
		case s.Size != 0:
			dataIdx = append(dataIdx, i)
		}
	}

	if text == nil {
		return nil, errors.New("no text section")
	}

	// stage 3: place. Text sits at its link base, data sections keep
	// their address when linked high, otherwise they are laid out from
	// the RAM base in order.
	code, err := text.Data()
	if err != nil {
		return nil, errors.Wrap(err, "read text")
	}

	secAddr := make(map[int]uint32, len(dataIdx))
	next := uint32(emu.RAMBase)

	for _, i := range dataIdx {
		s := f.Sections[i]

		addr := uint32(s.Addr)
		if addr < emu.RAMBase {
			align := uint32(s.Addralign)
			if align == 0 {
				align = 1
			}

			addr = (next + align - 1) &^ (align - 1)
		}

		secAddr[i] = addr

		if end := addr + uint32(s.Size); end > next {
			next = end
		}
	}

	var ram []byte
	if next > emu.RAMBase {
		ram = make([]byte, next-emu.RAMBase)

		for _, i := range dataIdx {
			s := f.Sections[i]
			if s.Type == elf.SHT_NOBITS {
				continue
			}

			d, err := s.Data()
			if err != nil {
				return nil, errors.Wrap(err, "read %v", s.Name)
			}

			copy(ram[secAddr[i]-emu.RAMBase:], d)
		}
	}

	img := &back.Image{
		Text:     code,
		Base:     back.TextBase,
		Data:     ram,
		DataBase: emu.RAMBase,
		Symbols:  make(map[string]uint32),
		Builtins: make(map[uint32]qmath.BuiltinId),
	}

	// stage 4: resolve symbols
	syms, err := f.Symbols()
	if err != nil {
		return nil, errors.Wrap(err, "symbols")
	}

	addrOf := func(s elf.Symbol) (uint32, error) {
		if int(s.Section) == textIdx {
			return img.Base + uint32(s.Value), nil
		}

		if a, ok := secAddr[int(s.Section)]; ok {
			return a + uint32(s.Value), nil
		}

		if s.Section == elf.SHN_UNDEF {
			id := qmath.LookupBuiltin(s.Name)
			if id == qmath.BuiltinInvalid {
				return 0, errors.New("undefined symbol: %v", s.Name)
			}

			addr := uint32(back.BuiltinBase) + uint32(id-1)*4
			img.Builtins[addr] = id

			return addr, nil
		}

		return 0, errors.New("symbol %v in unsupported section", s.Name)
	}

	for _, s := range syms {
		switch {
		case s.Name == "":
		case int(s.Section) == textIdx:
			img.Symbols[s.Name] = img.Base + uint32(s.Value)
			info.Funcs = append(info.Funcs, s.Name)
		case s.Section == elf.SHN_UNDEF:
			info.Externs = append(info.Externs, s.Name)
		default:
			if a, ok := secAddr[int(s.Section)]; ok {
				img.Symbols[s.Name] = a + uint32(s.Value)
			}
		}
	}

	// stage 5: relocate
	for _, s := range f.Sections {
		if s.Type != elf.SHT_RELA {
			continue
		}

		buf, base := code, img.Base

		if a, ok := secAddr[int(s.Info)]; ok {
			buf, base = ram[a-emu.RAMBase:], a
		} else if int(s.Info) != textIdx {
			continue
		}

		rd, err := s.Data()
		if err != nil {
			return nil, errors.Wrap(err, "read %v", s.Name)
		}

		if err = relocate(buf, base, rd, syms, addrOf); err != nil {
			return nil, errors.Wrap(err, "%v", s.Name)
		}
	}

	tr.Printw("loaded", "funcs", len(info.Funcs), "externs", len(info.Externs), "skipped", info.Skipped)

	info.Image = img

	return info, nil
}

func relocate(code []byte, base uint32, rd []byte, syms []elf.Symbol, addrOf func(elf.Symbol) (uint32, error)) error {
	var rels []rela32

	for off := 0; off+12 <= len(rd); off += 12 {
		rels = append(rels, rela32{
			Off:    binary.LittleEndian.Uint32(rd[off:]),
			Info:   binary.LittleEndian.Uint32(rd[off+4:]),
			Addend: int32(binary.LittleEndian.Uint32(rd[off+8:])),
		})
	}

	// pcrel lo12 entries reference their hi20 site by address, so the
	// hi20 pass runs first and records the pc-relative delta per site.
	his := map[uint32]uint32{}

	var los []int

	for ri, r := range rels {
		si := r.Info >> 8
		if si == 0 || int(si) > len(syms) {
			return errors.New("relocation against bad symbol %d", si)
		}

		// debug/elf drops the null symbol
		addr, err := addrOf(syms[si-1])
		if err != nil {
			return err
		}

		addr += uint32(r.Addend)

		if int(r.Off)+4 > len(code) {
			return errors.New("relocation outside text at %#x", r.Off)
		}

		w := binary.LittleEndian.Uint32(code[r.Off:])
		rel := addr - (base + r.Off)

		switch elf.R_RISCV(r.Info & 0xff) {
		case elf.R_RISCV_32:
			w = addr
		case elf.R_RISCV_HI20:
			w = w&0xfff | (addr+0x800)&0xfffff000
		case elf.R_RISCV_LO12_I:
			w = w&0xfffff | addr&0xfff<<20
		case elf.R_RISCV_PCREL_HI20:
			his[base+r.Off] = rel
			w = w&0xfff | (rel+0x800)&0xfffff000
		case elf.R_RISCV_PCREL_LO12_I:
			los = append(los, ri)
			continue
		case elf.R_RISCV_CALL, elf.R_RISCV_CALL_PLT:
			if int(r.Off)+8 > len(code) {
				return errors.New("call relocation outside text at %#x", r.Off)
			}

			w = w&0xfff | (rel+0x800)&0xfffff000

			w2 := binary.LittleEndian.Uint32(code[r.Off+4:])
			w2 = w2&0xfffff | rel&0xfff<<20
			binary.LittleEndian.PutUint32(code[r.Off+4:], w2)
		case elf.R_RISCV_JAL:
			if int32(rel) < -(1<<20) || int32(rel) >= 1<<20 {
				return errors.New("jal target out of range at %#x", r.Off)
			}

			w = w&0xfff | jimm(rel)
		case elf.R_RISCV_BRANCH:
			if int32(rel) < -(1<<12) || int32(rel) >= 1<<12 {
				return errors.New("branch target out of range at %#x", r.Off)
			}

			w = w&0x01fff07f | bimm(rel)
		case elf.R_RISCV_RVC_JUMP:
			if int32(rel) < -(1<<11) || int32(rel) >= 1<<11 {
				return errors.New("c.j target out of range at %#x", r.Off)
			}

			h := uint32(binary.LittleEndian.Uint16(code[r.Off:]))
			binary.LittleEndian.PutUint16(code[r.Off:], uint16(h&0xe003|cjimm(rel)))

			continue
		case elf.R_RISCV_RVC_BRANCH:
			if int32(rel) < -(1<<8) || int32(rel) >= 1<<8 {
				return errors.New("c.branch target out of range at %#x", r.Off)
			}

			h := uint32(binary.LittleEndian.Uint16(code[r.Off:]))
			binary.LittleEndian.PutUint16(code[r.Off:], uint16(h&0xe383|cbimm(rel)))

			continue
		default:
			return errors.New("unsupported relocation type %v", elf.R_RISCV(r.Info&0xff))
		}

		binary.LittleEndian.PutUint32(code[r.Off:], w)
	}

	for _, ri := range los {
		r := rels[ri]

		// the symbol names the auipc instruction, not the final target
		addr, err := addrOf(syms[r.Info>>8-1])
		if err != nil {
			return err
		}

		rel, ok := his[addr+uint32(r.Addend)]
		if !ok {
			return errors.New("pcrel lo12 at %#x without matching hi20", r.Off)
		}

		w := binary.LittleEndian.Uint32(code[r.Off:])
		w = w&0xfffff | rel&0xfff<<20
		binary.LittleEndian.PutUint32(code[r.Off:], w)
	}

	return nil
}

// imm-field encoders for relocation patching. They produce only the
// immediate bits, the caller masks and ors into the existing word.

func jimm(r uint32) uint32 {
	return (r>>20&1)<<31 | (r>>1&0x3ff)<<21 | (r>>11&1)<<20 | (r>>12&0xff)<<12
}

func bimm(r uint32) uint32 {
	return (r>>12&1)<<31 | (r>>5&0x3f)<<25 | (r>>1&0xf)<<8 | (r>>11&1)<<7
}

func cjimm(r uint32) uint32 {
	return (r>>11&1)<<12 | (r>>4&1)<<11 | (r>>8&3)<<9 | (r>>10&1)<<8 |
		(r>>6&1)<<7 | (r>>7&1)<<6 | (r>>1&7)<<3 | (r>>5&1)<<2
}

func cbimm(r uint32) uint32 {
	return (r>>8&1)<<12 | (r>>3&3)<<10 | (r>>6&3)<<5 | (r>>1&3)<<3 | (r>>5&1)<<2
}

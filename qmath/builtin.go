package qmath

import (
	"strings"
)

// BuiltinId identifies every fixed-point builtin callable from
// compiled code. The compiler resolves external names to ids during
// codegen and the execution engine binds ids to the implementations
// below.
type BuiltinId uint8

const (
	BuiltinInvalid BuiltinId = iota

	BuiltinQ32Mul
	BuiltinQ32Div
	BuiltinQ32Sqrt
	BuiltinQ32Sin
	BuiltinQ32Cos
	BuiltinQ32Exp
	BuiltinQ32Log
	BuiltinQ32Pow
	BuiltinQ32Atan2
	BuiltinQ32Mod

	BuiltinHash1
	BuiltinHash2
	BuiltinHash3
	BuiltinWorley2
	BuiltinWorley3
	BuiltinNoise2
	BuiltinNoise3
	BuiltinRGB2HSV
	BuiltinHSV2RGB

	builtinCount
)

type builtinInfo struct {
	name string // canonical external name
	args int    // i32 argument words, excluding the result pointer
	rets int    // result words; >1 means returned through a result pointer
}

var builtins = [builtinCount]builtinInfo{
	BuiltinQ32Mul:   {"__lp_q32_mul", 2, 1},
	BuiltinQ32Div:   {"__lp_q32_div", 2, 1},
	BuiltinQ32Sqrt:  {"__lp_q32_sqrt", 1, 1},
	BuiltinQ32Sin:   {"__lp_q32_sin", 1, 1},
	BuiltinQ32Cos:   {"__lp_q32_cos", 1, 1},
	BuiltinQ32Exp:   {"__lp_q32_exp", 1, 1},
	BuiltinQ32Log:   {"__lp_q32_log", 1, 1},
	BuiltinQ32Pow:   {"__lp_q32_pow", 2, 1},
	BuiltinQ32Atan2: {"__lp_q32_atan2", 2, 1},
	BuiltinQ32Mod:   {"__lp_q32_mod", 2, 1},

	BuiltinHash1:   {"__lpfx_hash1", 2, 1},
	BuiltinHash2:   {"__lpfx_hash2", 3, 1},
	BuiltinHash3:   {"__lpfx_hash3", 4, 1},
	BuiltinWorley2: {"__lpfx_worley2", 3, 1},
	BuiltinWorley3: {"__lpfx_worley3", 4, 1},
	BuiltinNoise2:  {"__lpfx_noise2", 3, 1},
	BuiltinNoise3:  {"__lpfx_noise3", 4, 1},
	BuiltinRGB2HSV: {"__lpfx_rgb2hsv", 3, 3},
	BuiltinHSV2RGB: {"__lpfx_hsv2rgb", 3, 3},
}

func (id BuiltinId) Name() string {
	if id == 0 || id >= builtinCount {
		return "invalid"
	}

	return builtins[id].name
}

func (id BuiltinId) ArgWords() int { return builtins[id].args }

func (id BuiltinId) RetWords() int { return builtins[id].rets }

// StructReturn reports whether results are written through a caller
// provided buffer instead of registers.
func (id BuiltinId) StructReturn() bool { return builtins[id].rets > 1 }

// LookupBuiltin resolves an external name to its id. Both naming
// conventions resolve to the same id: the canonical `__lpfx_worley2`
// and the legacy `lpfx_worley2f`.
func LookupBuiltin(name string) BuiltinId {
	for id := BuiltinId(1); id < builtinCount; id++ {
		if builtins[id].name == name {
			return id
		}
	}

	if s, ok := strings.CutPrefix(name, "lpfx_"); ok {
		if s, ok = strings.CutSuffix(s, "f"); ok {
			return LookupBuiltin("__lpfx_" + s)
		}
	}

	return BuiltinInvalid
}

// Builtins lists every valid id, for registration loops.
func Builtins() []BuiltinId {
	l := make([]BuiltinId, 0, builtinCount-1)

	for id := BuiltinId(1); id < builtinCount; id++ {
		l = append(l, id)
	}

	return l
}

// Invoke runs a builtin over raw argument words. Arguments and results
// are Q16.16 words except seeds, which are raw u32. Multi-word results
// are returned in order; the caller stores them through the result
// pointer.
func Invoke(id BuiltinId, args []int32) []int32 {
	q := func(i int) Q32 { return Q32(args[i]) }
	u := func(i int) uint32 { return uint32(args[i]) }
	one := func(r Q32) []int32 { return []int32{int32(r)} }

	switch id {
	case BuiltinQ32Mul:
		return one(q(0).Mul(q(1)))
	case BuiltinQ32Div:
		return one(q(0).Div(q(1)))
	case BuiltinQ32Sqrt:
		return one(q(0).Sqrt())
	case BuiltinQ32Sin:
		return one(q(0).Sin())
	case BuiltinQ32Cos:
		return one(q(0).Cos())
	case BuiltinQ32Exp:
		return one(q(0).Exp())
	case BuiltinQ32Log:
		return one(q(0).Log())
	case BuiltinQ32Pow:
		return one(q(0).Pow(q(1)))
	case BuiltinQ32Atan2:
		return one(Atan2(q(0), q(1)))
	case BuiltinQ32Mod:
		return one(q(0).Mod(q(1)))
	case BuiltinHash1:
		return one(HashQ1(q(0), u(1)))
	case BuiltinHash2:
		return one(HashQ2(V2(q(0), q(1)), u(2)))
	case BuiltinHash3:
		return one(HashQ3(V3(q(0), q(1), q(2)), u(3)))
	case BuiltinWorley2:
		return one(Worley2(V2(q(0), q(1)), u(2)))
	case BuiltinWorley3:
		return one(Worley3(V3(q(0), q(1), q(2)), u(3)))
	case BuiltinNoise2:
		return one(Noise2(V2(q(0), q(1)), u(2)))
	case BuiltinNoise3:
		return one(Noise3(V3(q(0), q(1), q(2)), u(3)))
	case BuiltinRGB2HSV:
		v := RGB2HSV(V3(q(0), q(1), q(2)))
		return []int32{int32(v.X), int32(v.Y), int32(v.Z)}
	case BuiltinHSV2RGB:
		v := HSV2RGB(V3(q(0), q(1), q(2)))
		return []int32{int32(v.X), int32(v.Y), int32(v.Z)}
	default:
		return nil
	}
}

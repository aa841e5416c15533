// Package qmath is the fixed-point builtin math library the compiled
// shaders call into. Everything is Q16.16: a Q32 stores value*65536 in
// a signed 32 bit integer. Arithmetic saturates instead of wrapping and
// division never traps.
package qmath

import (
	"math"
	"math/bits"
)

type Q32 int32

const Shift = 16

const (
	Zero Q32 = 0
	One  Q32 = 1 << Shift
	Half Q32 = 1 << (Shift - 1)

	Pi  Q32 = 205887 // pi * 65536
	Tau Q32 = 411775
	E   Q32 = 178145
	Phi Q32 = 106039

	Min Q32 = math.MinInt32
	Max Q32 = math.MaxInt32

	ln2   Q32 = 45426 // ln(2) * 65536
	log2e Q32 = 94548
)

func FromInt(x int32) Q32 {
	if x > math.MaxInt32>>Shift {
		return Max
	}
	if x < math.MinInt32>>Shift {
		return Min
	}

	return Q32(x) << Shift
}

func FromFloat(x float64) Q32 {
	return sat(int64(math.Round(x * (1 << Shift))))
}

func (a Q32) Float() float64 {
	return float64(a) / (1 << Shift)
}

func (a Q32) Raw() int32 { return int32(a) }

func FromRaw(raw int32) Q32 { return Q32(raw) }

func sat(x int64) Q32 {
	if x > math.MaxInt32 {
		return Max
	}
	if x < math.MinInt32 {
		return Min
	}

	return Q32(x)
}

func (a Q32) Add(b Q32) Q32 {
	return sat(int64(a) + int64(b))
}

func (a Q32) Sub(b Q32) Q32 {
	return sat(int64(a) - int64(b))
}

// Mul widens to 64 bits before shifting down.
func (a Q32) Mul(b Q32) Q32 {
	return sat(int64(a) * int64(b) >> Shift)
}

// Div saturates on division by zero: +Max for a positive numerator,
// Min for a negative one, Zero for zero.
func (a Q32) Div(b Q32) Q32 {
	if b == 0 {
		switch {
		case a > 0:
			return Max
		case a < 0:
			return Min
		default:
			return Zero
		}
	}

	return sat(int64(a) << Shift / int64(b))
}

func (a Q32) Neg() Q32 {
	if a == Min {
		return Max
	}

	return -a
}

func (a Q32) Abs() Q32 {
	if a < 0 {
		return a.Neg()
	}

	return a
}

func MinQ(a, b Q32) Q32 {
	if a < b {
		return a
	}

	return b
}

func MaxQ(a, b Q32) Q32 {
	if a > b {
		return a
	}

	return b
}

func Clamp(x, lo, hi Q32) Q32 {
	return MinQ(MaxQ(x, lo), hi)
}

func Mix(a, b, t Q32) Q32 {
	return a.Add(b.Sub(a).Mul(t))
}

func Step(edge, x Q32) Q32 {
	if x < edge {
		return Zero
	}

	return One
}

func Smoothstep(e0, e1, x Q32) Q32 {
	t := Clamp(x.Sub(e0).Div(e1.Sub(e0)), Zero, One)

	return t.Mul(t).Mul(FromInt(3).Sub(t.Add(t)))
}

func (a Q32) Floor() Q32 {
	return a &^ (One - 1)
}

func (a Q32) Ceil() Q32 {
	return a.Add(One - 1) &^ (One - 1)
}

func (a Q32) Fract() Q32 {
	return a & (One - 1)
}

func (a Q32) Round() Q32 {
	return a.Add(Half) &^ (One - 1)
}

// Mod is GLSL mod: the result takes the sign of b. Mod by zero is zero.
func (a Q32) Mod(b Q32) Q32 {
	if b == 0 {
		return Zero
	}

	r := a % b
	if r != 0 && (r^b) < 0 {
		r += b
	}

	return r
}

// Sqrt of a non-positive value is zero.
func (a Q32) Sqrt() Q32 {
	if a <= 0 {
		return Zero
	}

	return Q32(isqrt64(uint64(a) << Shift))
}

func isqrt64(x uint64) uint32 {
	var r, b uint64

	b = 1 << 62
	for b > x {
		b >>= 2
	}

	for b != 0 {
		if x >= r+b {
			x -= r + b
			r = r>>1 + b
		} else {
			r >>= 1
		}

		b >>= 2
	}

	return uint32(r)
}

// Sin uses the parabolic approximation with a correction term,
// accurate to about 0.1% over a full period.
func (a Q32) Sin() Q32 {
	x := a.Mod(Tau)
	if x > Pi {
		x -= Tau
	}

	const (
		b Q32 = 83443 // 4/pi * 65536
		c Q32 = 26561 // 4/pi^2 * 65536
		p Q32 = 14746 // 0.225 * 65536
	)

	y := x.Mul(b).Sub(x.Mul(x.Abs().Mul(c)))
	y = y.Mul(y.Abs()).Sub(y).Mul(p).Add(y)

	return y
}

func (a Q32) Cos() Q32 {
	return a.Add(Pi >> 1).Sin()
}

// Exp2 splits into integer and fractional parts. The fraction is a
// cubic approximation.
func (a Q32) Exp2() Q32 {
	n := int32(a >> Shift)
	f := a.Fract()

	const (
		c1 Q32 = 45608 // 0.69583
		c2 Q32 = 14817 // 0.22606
		c3 Q32 = 5120  // 0.07811
	)

	m := One.Add(f.Mul(c1.Add(f.Mul(c2.Add(f.Mul(c3))))))

	switch {
	case n >= 15:
		return Max
	case n >= 0:
		return sat(int64(m) << uint(n))
	case n > -32:
		return Q32(int64(m) >> uint(-n))
	default:
		return Zero
	}
}

// Log2 of a non-positive value saturates to Min.
func (a Q32) Log2() Q32 {
	if a <= 0 {
		return Min
	}

	msb := bits.Len32(uint32(a)) - 1
	n := msb - Shift

	var m Q32
	if n >= 0 {
		m = a >> uint(n)
	} else {
		m = a << uint(-n)
	}

	f := m - One

	const c Q32 = 22534 // 0.3438

	lg := f.Add(f.Mul(One.Sub(f)).Mul(c))

	return FromInt(int32(n)).Add(lg)
}

func (a Q32) Exp() Q32 {
	return a.Mul(log2e).Exp2()
}

func (a Q32) Log() Q32 {
	if a <= 0 {
		return Min
	}

	return a.Log2().Mul(ln2)
}

// Pow is defined for positive bases only; zero and negative bases
// yield zero, matching the shader-domain convention.
func (a Q32) Pow(b Q32) Q32 {
	if a <= 0 {
		return Zero
	}

	return b.Mul(a.Log2()).Exp2()
}

// Atan2 uses octant reduction and a first-order correction,
// accurate to about 0.005 rad.
func Atan2(y, x Q32) Q32 {
	if x == 0 && y == 0 {
		return Zero
	}

	const quarter = Pi >> 2 // pi/4

	atan := func(z Q32) Q32 {
		// atan(z) for |z| <= 1
		const k Q32 = 17892 // 0.273

		return z.Mul(quarter.Add(k.Mul(One.Sub(z.Abs()))))
	}

	ax, ay := x.Abs(), y.Abs()

	var r Q32
	if ax >= ay {
		r = atan(ay.Div(ax))
	} else {
		r = (Pi >> 1).Sub(atan(ax.Div(ay)))
	}

	if x < 0 {
		r = Pi.Sub(r)
	}

	if y < 0 {
		r = r.Neg()
	}

	return r
}

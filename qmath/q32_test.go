package qmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloat(t *testing.T) {
	assert.Equal(t, One, FromFloat(1))
	assert.Equal(t, Half, FromFloat(0.5))
	assert.Equal(t, Q32(-One), FromFloat(-1))
	assert.Equal(t, Max, FromFloat(1e9))
	assert.Equal(t, Min, FromFloat(-1e9))

	assert.InDelta(t, 1.5, FromFloat(1.5).Float(), 1e-4)
	assert.InDelta(t, -2.75, FromFloat(-2.75).Float(), 1e-4)
}

func TestAddSubSaturate(t *testing.T) {
	assert.Equal(t, FromInt(3), FromInt(1).Add(FromInt(2)))
	assert.Equal(t, Max, Max.Add(One))
	assert.Equal(t, Min, Min.Sub(One))
	assert.Equal(t, Max, Max.Sub(Q32(-One)))
	assert.Equal(t, Min, Min.Add(Q32(-One)))
}

func TestMul(t *testing.T) {
	assert.Equal(t, FromInt(6), FromInt(2).Mul(FromInt(3)))
	assert.Equal(t, FromInt(-6), FromInt(2).Mul(FromInt(-3)))
	assert.Equal(t, Half, Half.Mul(One))

	// 300 * 300 overflows the 15-bit integer range
	assert.Equal(t, Max, FromInt(300).Mul(FromInt(300)))
	assert.Equal(t, Min, FromInt(300).Mul(FromInt(-300)))
}

func TestDiv(t *testing.T) {
	assert.Equal(t, Half, One.Div(FromInt(2)))
	assert.Equal(t, FromInt(-2), FromInt(6).Div(FromInt(-3)))

	// division by zero saturates by numerator sign
	assert.Equal(t, Max, One.Div(0))
	assert.Equal(t, Min, FromInt(-1).Div(0))
	assert.Equal(t, Zero, Zero.Div(0))
}

func TestNegAbs(t *testing.T) {
	assert.Equal(t, Q32(-One), One.Neg())
	assert.Equal(t, One, Q32(-One).Abs())
	assert.Equal(t, Max, Min.Neg())
	assert.Equal(t, Max, Min.Abs())
}

func TestRounding(t *testing.T) {
	assert.Equal(t, One, FromFloat(1.25).Floor())
	assert.Equal(t, FromInt(2), FromFloat(1.25).Ceil())
	assert.Equal(t, FromFloat(0.25), FromFloat(1.25).Fract())
	assert.Equal(t, One, FromFloat(1.25).Round())
	assert.Equal(t, FromInt(2), FromFloat(1.5).Round())

	assert.Equal(t, FromInt(-2), FromFloat(-1.25).Floor())
	assert.Equal(t, FromInt(-1), FromFloat(-1.25).Ceil())
	assert.Equal(t, FromFloat(0.75), FromFloat(-1.25).Fract())
}

func TestMod(t *testing.T) {
	assert.Equal(t, FromInt(2), FromInt(5).Mod(FromInt(3)))

	// result takes the sign of the divisor, like glsl mod
	assert.Equal(t, One, FromInt(-5).Mod(FromInt(3)))
	assert.Equal(t, FromInt(-1), FromInt(5).Mod(FromInt(-3)))

	assert.Equal(t, Zero, FromInt(5).Mod(0))
}

func TestSqrt(t *testing.T) {
	assert.Equal(t, FromInt(2), FromInt(4).Sqrt())
	assert.Equal(t, FromInt(3), FromInt(9).Sqrt())
	assert.Equal(t, Zero, FromInt(-4).Sqrt())

	for _, x := range []float64{0.25, 2, 10, 100, 1000} {
		got := FromFloat(x).Sqrt().Float()
		assert.InDelta(t, math.Sqrt(x), got, 1e-3, "sqrt(%v)", x)
	}
}

func TestSinCos(t *testing.T) {
	for x := -7.0; x <= 7.0; x += 0.1 {
		q := FromFloat(x)

		assert.InDelta(t, math.Sin(x), q.Sin().Float(), 0.01, "sin(%v)", x)
		assert.InDelta(t, math.Cos(x), q.Cos().Float(), 0.01, "cos(%v)", x)
	}
}

func TestExpLog(t *testing.T) {
	assert.InDelta(t, 1, Zero.Exp().Float(), 1e-3)
	assert.InDelta(t, math.E, One.Exp().Float(), 0.02)
	assert.InDelta(t, 0, One.Log().Float(), 1e-3)

	for _, x := range []float64{0.5, 1, 2, 3, 10} {
		assert.InDelta(t, math.Log(x), FromFloat(x).Log().Float(), 0.02, "log(%v)", x)
	}

	// log of a non-positive value saturates down
	assert.Equal(t, Min, Zero.Log())
	assert.Equal(t, Min, FromInt(-1).Log())
}

func TestPow(t *testing.T) {
	assert.InDelta(t, 8, FromInt(2).Pow(FromInt(3)).Float(), 0.05)
	assert.InDelta(t, 3, FromInt(9).Pow(Half).Float(), 0.02)

	// non-positive base is defined as zero
	assert.Equal(t, Zero, Zero.Pow(FromInt(2)))
	assert.Equal(t, Zero, FromInt(-2).Pow(FromInt(2)))
}

func TestAtan2(t *testing.T) {
	cases := [][2]float64{
		{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
		{0, 1}, {1, 0}, {-1, 0}, {3, 0.5}, {-0.2, 4},
	}

	for _, c := range cases {
		want := math.Atan2(c[0], c[1])
		got := Atan2(FromFloat(c[0]), FromFloat(c[1])).Float()

		assert.InDelta(t, want, got, 0.02, "atan2(%v, %v)", c[0], c[1])
	}
}

func TestInterp(t *testing.T) {
	assert.Equal(t, FromInt(3), Clamp(FromInt(5), Zero, FromInt(3)))
	assert.Equal(t, Zero, Clamp(FromInt(-5), Zero, FromInt(3)))

	assert.Equal(t, Half, Mix(Zero, One, Half))
	assert.Equal(t, One, Step(Half, One))
	assert.Equal(t, Zero, Step(Half, Zero))

	assert.Equal(t, Zero, Smoothstep(Zero, One, Q32(-One)))
	assert.Equal(t, One, Smoothstep(Zero, One, FromInt(2)))
	assert.Equal(t, Half, Smoothstep(Zero, One, Half))
}

func TestVec(t *testing.T) {
	a := V3(FromInt(3), FromInt(4), Zero)

	assert.Equal(t, FromInt(5), a.Length())

	n := a.Normalize()
	assert.InDelta(t, 1, n.Length().Float(), 1e-2)

	// zero vector normalizes to zero, not to a fault
	z := V3(0, 0, 0).Normalize()
	assert.Equal(t, V3(0, 0, 0), z)

	x := V3(One, 0, 0)
	y := V3(0, One, 0)
	require.Equal(t, V3(0, 0, One), x.Cross(y))

	assert.Equal(t, FromInt(11), V2(One, FromInt(2)).Dot(V2(FromInt(3), FromInt(4))))
}

func TestMat(t *testing.T) {
	m := MatIdentity(One)
	v := V3(One, FromInt(2), FromInt(3))

	assert.Equal(t, v, m.MulVec(v))
	assert.Equal(t, m, m.Mul(m))
	assert.Equal(t, m, m.Transpose())

	s := MatIdentity(FromInt(2))
	assert.Equal(t, V3(FromInt(2), FromInt(4), FromInt(6)), s.MulVec(v))
}

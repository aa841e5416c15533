package qmath

// Color conversions between RGB and HSV. All channels live in [0, 1]
// (hue is the angle normalized into [0, 1)). The two functions are
// approximate inverses: fixed-point rounding keeps round trips within
// a small tolerance, not bit-exact.

func RGB2HSV(c Vec3Q32) Vec3Q32 {
	r := Clamp(c.X, Zero, One)
	g := Clamp(c.Y, Zero, One)
	b := Clamp(c.Z, Zero, One)

	maxc := MaxQ(r, MaxQ(g, b))
	minc := MinQ(r, MinQ(g, b))
	delta := maxc.Sub(minc)

	v := maxc

	var s Q32
	if maxc > 0 {
		s = delta.Div(maxc)
	}

	var h Q32

	if delta > 0 {
		sixth := One.Div(FromInt(6))

		switch maxc {
		case r:
			h = g.Sub(b).Div(delta).Mod(FromInt(6)).Mul(sixth)
		case g:
			h = b.Sub(r).Div(delta).Add(FromInt(2)).Mul(sixth)
		default:
			h = r.Sub(g).Div(delta).Add(FromInt(4)).Mul(sixth)
		}
	}

	return Vec3Q32{
		Clamp(h, Zero, One),
		Clamp(s, Zero, One),
		Clamp(v, Zero, One),
	}
}

func HSV2RGB(c Vec3Q32) Vec3Q32 {
	h := c.X.Mod(One).Mul(FromInt(6))
	s := Clamp(c.Y, Zero, One)
	v := Clamp(c.Z, Zero, One)

	i := int32(h >> Shift)
	f := h.Fract()

	p := v.Mul(One.Sub(s))
	q := v.Mul(One.Sub(f.Mul(s)))
	t := v.Mul(One.Sub(One.Sub(f).Mul(s)))

	var out Vec3Q32

	switch i % 6 {
	case 0:
		out = Vec3Q32{v, t, p}
	case 1:
		out = Vec3Q32{q, v, p}
	case 2:
		out = Vec3Q32{p, v, t}
	case 3:
		out = Vec3Q32{p, q, v}
	case 4:
		out = Vec3Q32{t, p, v}
	default:
		out = Vec3Q32{v, p, q}
	}

	return out.Clamp(Vec3Q32{}, Vec3Q32{One, One, One})
}

package qmath

// Noise and hash primitives. All of them are pure functions of integer
// cell coordinates and a 32 bit seed: identical input always produces
// identical output, on every platform.

// Hash is a 32 bit integer mix (xorshift-multiply, PCG output step).
func Hash(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16

	return x
}

func Hash2(x, y, seed uint32) uint32 {
	return Hash(x*0x9e3779b9 ^ Hash(y+seed))
}

func Hash3(x, y, z, seed uint32) uint32 {
	return Hash(x*0x9e3779b9 ^ Hash(y*0x85ebca6b^Hash(z+seed)))
}

// hashQ maps a hash to Q16.16 in [0, 1).
func hashQ(h uint32) Q32 {
	return Q32(h >> (32 - Shift))
}

// HashQ1 is a [0, 1) fixed-point hash of one fixed-point coordinate.
func HashQ1(x Q32, seed uint32) Q32 {
	return hashQ(Hash(uint32(x) + seed*0x9e3779b9))
}

func HashQ2(v Vec2Q32, seed uint32) Q32 {
	return hashQ(Hash2(uint32(v.X), uint32(v.Y), seed))
}

func HashQ3(v Vec3Q32, seed uint32) Q32 {
	return hashQ(Hash3(uint32(v.X), uint32(v.Y), uint32(v.Z), seed))
}

// cellPoint2 is the feature point of an integer cell, in cell-local
// coordinates [0, 1).
func cellPoint2(cx, cy int32, seed uint32) Vec2Q32 {
	h := Hash2(uint32(cx), uint32(cy), seed)

	return Vec2Q32{
		hashQ(h),
		hashQ(Hash(h)),
	}
}

func cellPoint3(cx, cy, cz int32, seed uint32) Vec3Q32 {
	h := Hash3(uint32(cx), uint32(cy), uint32(cz), seed)
	h2 := Hash(h)

	return Vec3Q32{
		hashQ(h),
		hashQ(h2),
		hashQ(Hash(h2)),
	}
}

// Worley2 is 2D cellular noise: the distance to the nearest feature
// point over the 3x3 cell neighborhood, roughly in [0, 1].
func Worley2(p Vec2Q32, seed uint32) Q32 {
	cx := int32(p.X >> Shift)
	cy := int32(p.Y >> Shift)

	frac := Vec2Q32{p.X.Fract(), p.Y.Fract()}

	best := Max

	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			fp := cellPoint2(cx+dx, cy+dy, seed)

			d := Vec2Q32{
				fp.X.Add(FromInt(dx)).Sub(frac.X),
				fp.Y.Add(FromInt(dy)).Sub(frac.Y),
			}

			if l := d.Dot(d); l < best {
				best = l
			}
		}
	}

	return MinQ(best.Sqrt(), One)
}

// Worley3 is the 3D variant over the 3x3x3 neighborhood.
func Worley3(p Vec3Q32, seed uint32) Q32 {
	cx := int32(p.X >> Shift)
	cy := int32(p.Y >> Shift)
	cz := int32(p.Z >> Shift)

	frac := p.Fract()

	best := Max

	for dz := int32(-1); dz <= 1; dz++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				fp := cellPoint3(cx+dx, cy+dy, cz+dz, seed)

				d := Vec3Q32{
					fp.X.Add(FromInt(dx)).Sub(frac.X),
					fp.Y.Add(FromInt(dy)).Sub(frac.Y),
					fp.Z.Add(FromInt(dz)).Sub(frac.Z),
				}

				if l := d.Dot(d); l < best {
					best = l
				}
			}
		}
	}

	return MinQ(best.Sqrt(), One)
}

// fade is the smootherstep weight 6t^5-15t^4+10t^3 used for gradient
// interpolation.
func fade(t Q32) Q32 {
	t3 := t.Mul(t).Mul(t)

	return t3.Mul(t.Mul(t.Mul(FromInt(6)).Sub(FromInt(15))).Add(FromInt(10)))
}

// Noise2 is 2D value noise in approximately [-1, 1].
func Noise2(p Vec2Q32, seed uint32) Q32 {
	cx := int32(p.X >> Shift)
	cy := int32(p.Y >> Shift)

	fx := p.X.Fract()
	fy := p.Y.Fract()

	v := func(dx, dy int32) Q32 {
		// cell value in [-1, 1]
		return hashQ(Hash2(uint32(cx+dx), uint32(cy+dy), seed)).Mul(FromInt(2)).Sub(One)
	}

	ux := fade(fx)
	uy := fade(fy)

	a := Mix(v(0, 0), v(1, 0), ux)
	b := Mix(v(0, 1), v(1, 1), ux)

	return Mix(a, b, uy)
}

// Noise3 is 3D value noise in approximately [-1, 1].
func Noise3(p Vec3Q32, seed uint32) Q32 {
	cx := int32(p.X >> Shift)
	cy := int32(p.Y >> Shift)
	cz := int32(p.Z >> Shift)

	fx := p.X.Fract()
	fy := p.Y.Fract()
	fz := p.Z.Fract()

	v := func(dx, dy, dz int32) Q32 {
		return hashQ(Hash3(uint32(cx+dx), uint32(cy+dy), uint32(cz+dz), seed)).Mul(FromInt(2)).Sub(One)
	}

	ux := fade(fx)
	uy := fade(fy)
	uz := fade(fz)

	a := Mix(Mix(v(0, 0, 0), v(1, 0, 0), ux), Mix(v(0, 1, 0), v(1, 1, 0), ux), uy)
	b := Mix(Mix(v(0, 0, 1), v(1, 0, 1), ux), Mix(v(0, 1, 1), v(1, 1, 1), ux), uy)

	return Mix(a, b, uz)
}

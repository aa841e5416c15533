package qmath

type (
	Vec2Q32 struct{ X, Y Q32 }
	Vec3Q32 struct{ X, Y, Z Q32 }
	Vec4Q32 struct{ X, Y, Z, W Q32 }

	// Mat3Q32 is column-major: element (row r, col c) is at [c*3+r].
	Mat3Q32 [9]Q32
)

func V2(x, y Q32) Vec2Q32       { return Vec2Q32{x, y} }
func V3(x, y, z Q32) Vec3Q32    { return Vec3Q32{x, y, z} }
func V4(x, y, z, w Q32) Vec4Q32 { return Vec4Q32{x, y, z, w} }

func (a Vec2Q32) Add(b Vec2Q32) Vec2Q32 { return Vec2Q32{a.X.Add(b.X), a.Y.Add(b.Y)} }
func (a Vec2Q32) Sub(b Vec2Q32) Vec2Q32 { return Vec2Q32{a.X.Sub(b.X), a.Y.Sub(b.Y)} }
func (a Vec2Q32) Mul(b Vec2Q32) Vec2Q32 { return Vec2Q32{a.X.Mul(b.X), a.Y.Mul(b.Y)} }
func (a Vec2Q32) Scale(s Q32) Vec2Q32   { return Vec2Q32{a.X.Mul(s), a.Y.Mul(s)} }

func (a Vec2Q32) Dot(b Vec2Q32) Q32 {
	return a.X.Mul(b.X).Add(a.Y.Mul(b.Y))
}

func (a Vec2Q32) Length() Q32 { return a.Dot(a).Sqrt() }

func (a Vec2Q32) Normalize() Vec2Q32 {
	l := a.Length()
	if l == 0 {
		return Vec2Q32{}
	}

	return Vec2Q32{a.X.Div(l), a.Y.Div(l)}
}

func (a Vec2Q32) Floor() Vec2Q32 { return Vec2Q32{a.X.Floor(), a.Y.Floor()} }
func (a Vec2Q32) Fract() Vec2Q32 { return Vec2Q32{a.X.Fract(), a.Y.Fract()} }

func (a Vec2Q32) YX() Vec2Q32 { return Vec2Q32{a.Y, a.X} }

func (a Vec3Q32) Add(b Vec3Q32) Vec3Q32 {
	return Vec3Q32{a.X.Add(b.X), a.Y.Add(b.Y), a.Z.Add(b.Z)}
}

func (a Vec3Q32) Sub(b Vec3Q32) Vec3Q32 {
	return Vec3Q32{a.X.Sub(b.X), a.Y.Sub(b.Y), a.Z.Sub(b.Z)}
}

func (a Vec3Q32) Mul(b Vec3Q32) Vec3Q32 {
	return Vec3Q32{a.X.Mul(b.X), a.Y.Mul(b.Y), a.Z.Mul(b.Z)}
}

func (a Vec3Q32) Scale(s Q32) Vec3Q32 {
	return Vec3Q32{a.X.Mul(s), a.Y.Mul(s), a.Z.Mul(s)}
}

func (a Vec3Q32) Dot(b Vec3Q32) Q32 {
	return a.X.Mul(b.X).Add(a.Y.Mul(b.Y)).Add(a.Z.Mul(b.Z))
}

func (a Vec3Q32) Cross(b Vec3Q32) Vec3Q32 {
	return Vec3Q32{
		a.Y.Mul(b.Z).Sub(a.Z.Mul(b.Y)),
		a.Z.Mul(b.X).Sub(a.X.Mul(b.Z)),
		a.X.Mul(b.Y).Sub(a.Y.Mul(b.X)),
	}
}

func (a Vec3Q32) Length() Q32 { return a.Dot(a).Sqrt() }

func (a Vec3Q32) Normalize() Vec3Q32 {
	l := a.Length()
	if l == 0 {
		return Vec3Q32{}
	}

	return Vec3Q32{a.X.Div(l), a.Y.Div(l), a.Z.Div(l)}
}

// Reflect mirrors a around the normal n: a - 2*dot(n, a)*n.
func (a Vec3Q32) Reflect(n Vec3Q32) Vec3Q32 {
	d := n.Dot(a)

	return a.Sub(n.Scale(d.Add(d)))
}

func (a Vec3Q32) Min(b Vec3Q32) Vec3Q32 {
	return Vec3Q32{MinQ(a.X, b.X), MinQ(a.Y, b.Y), MinQ(a.Z, b.Z)}
}

func (a Vec3Q32) Max(b Vec3Q32) Vec3Q32 {
	return Vec3Q32{MaxQ(a.X, b.X), MaxQ(a.Y, b.Y), MaxQ(a.Z, b.Z)}
}

func (a Vec3Q32) Clamp(lo, hi Vec3Q32) Vec3Q32 {
	return a.Max(lo).Min(hi)
}

func (a Vec3Q32) Mix(b Vec3Q32, t Q32) Vec3Q32 {
	return Vec3Q32{Mix(a.X, b.X, t), Mix(a.Y, b.Y, t), Mix(a.Z, b.Z, t)}
}

func (a Vec3Q32) Floor() Vec3Q32 { return Vec3Q32{a.X.Floor(), a.Y.Floor(), a.Z.Floor()} }
func (a Vec3Q32) Fract() Vec3Q32 { return Vec3Q32{a.X.Fract(), a.Y.Fract(), a.Z.Fract()} }

func (a Vec3Q32) Mod(b Vec3Q32) Vec3Q32 {
	return Vec3Q32{a.X.Mod(b.X), a.Y.Mod(b.Y), a.Z.Mod(b.Z)}
}

func (a Vec3Q32) XY() Vec2Q32 { return Vec2Q32{a.X, a.Y} }
func (a Vec3Q32) XZ() Vec2Q32 { return Vec2Q32{a.X, a.Z} }
func (a Vec3Q32) ZYX() Vec3Q32 { return Vec3Q32{a.Z, a.Y, a.X} }

func (a Vec4Q32) Add(b Vec4Q32) Vec4Q32 {
	return Vec4Q32{a.X.Add(b.X), a.Y.Add(b.Y), a.Z.Add(b.Z), a.W.Add(b.W)}
}

func (a Vec4Q32) Sub(b Vec4Q32) Vec4Q32 {
	return Vec4Q32{a.X.Sub(b.X), a.Y.Sub(b.Y), a.Z.Sub(b.Z), a.W.Sub(b.W)}
}

func (a Vec4Q32) Scale(s Q32) Vec4Q32 {
	return Vec4Q32{a.X.Mul(s), a.Y.Mul(s), a.Z.Mul(s), a.W.Mul(s)}
}

func (a Vec4Q32) Dot(b Vec4Q32) Q32 {
	return a.X.Mul(b.X).Add(a.Y.Mul(b.Y)).Add(a.Z.Mul(b.Z)).Add(a.W.Mul(b.W))
}

func (a Vec4Q32) Length() Q32 { return a.Dot(a).Sqrt() }

func (a Vec4Q32) XYZ() Vec3Q32 { return Vec3Q32{a.X, a.Y, a.Z} }

func MatIdentity(s Q32) Mat3Q32 {
	return Mat3Q32{s, 0, 0, 0, s, 0, 0, 0, s}
}

func (m Mat3Q32) Col(c int) Vec3Q32 {
	return Vec3Q32{m[c*3], m[c*3+1], m[c*3+2]}
}

func (m Mat3Q32) Row(r int) Vec3Q32 {
	return Vec3Q32{m[r], m[3+r], m[6+r]}
}

func (m Mat3Q32) MulVec(v Vec3Q32) Vec3Q32 {
	return Vec3Q32{m.Row(0).Dot(v), m.Row(1).Dot(v), m.Row(2).Dot(v)}
}

func (m Mat3Q32) Mul(r Mat3Q32) (o Mat3Q32) {
	for c := 0; c < 3; c++ {
		for w := 0; w < 3; w++ {
			o[c*3+w] = m.Row(w).Dot(r.Col(c))
		}
	}

	return o
}

func (m Mat3Q32) Transpose() (o Mat3Q32) {
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			o[c*3+r] = m[r*3+c]
		}
	}

	return o
}

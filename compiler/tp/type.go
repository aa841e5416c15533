package tp

import (
	"fmt"
)

type (
	Kind uint8

	// Type is a structural shader type. Values are immutable,
	// compare them with Equal.
	Type struct {
		Kind Kind
		N    uint8 // vector components or matrix dimension
		Elem *Type // array element
		Len  int   // array length
	}

	Qualifier uint8

	Param struct {
		Name string
		Type Type
		Qual Qualifier
	}

	Signature struct {
		Params []Param
		Return Type
	}
)

const (
	Void Kind = iota
	Bool
	Int
	UInt
	Float
	Vec
	IVec
	UVec
	BVec
	Mat
	Array
)

const (
	In Qualifier = iota
	Out
	InOut
)

var (
	VoidT  = Type{Kind: Void}
	BoolT  = Type{Kind: Bool}
	IntT   = Type{Kind: Int}
	UIntT  = Type{Kind: UInt}
	FloatT = Type{Kind: Float}

	Vec2T = Type{Kind: Vec, N: 2}
	Vec3T = Type{Kind: Vec, N: 3}
	Vec4T = Type{Kind: Vec, N: 4}

	IVec2T = Type{Kind: IVec, N: 2}
	IVec3T = Type{Kind: IVec, N: 3}
	IVec4T = Type{Kind: IVec, N: 4}

	UVec2T = Type{Kind: UVec, N: 2}
	UVec3T = Type{Kind: UVec, N: 3}
	UVec4T = Type{Kind: UVec, N: 4}

	BVec2T = Type{Kind: BVec, N: 2}
	BVec3T = Type{Kind: BVec, N: 3}
	BVec4T = Type{Kind: BVec, N: 4}

	Mat2T = Type{Kind: Mat, N: 2}
	Mat3T = Type{Kind: Mat, N: 3}
	Mat4T = Type{Kind: Mat, N: 4}
)

func ArrayOf(el Type, n int) Type {
	e := el

	return Type{Kind: Array, Elem: &e, Len: n}
}

func (t Type) Equal(r Type) bool {
	if t.Kind != r.Kind || t.N != r.N || t.Len != r.Len {
		return false
	}

	if t.Kind == Array {
		return t.Elem.Equal(*r.Elem)
	}

	return true
}

// Components is the number of scalar lanes the type flattens into.
func (t Type) Components() int {
	switch t.Kind {
	case Void:
		return 0
	case Bool, Int, UInt, Float:
		return 1
	case Vec, IVec, UVec, BVec:
		return int(t.N)
	case Mat:
		return int(t.N) * int(t.N)
	case Array:
		return t.Len * t.Elem.Components()
	default:
		panic(t.Kind)
	}
}

// Scalar is the component type: vec3 -> float, ivec2 -> int, mat4 -> float.
func (t Type) Scalar() Type {
	switch t.Kind {
	case Bool, Int, UInt, Float:
		return t
	case Vec, Mat:
		return FloatT
	case IVec:
		return IntT
	case UVec:
		return UIntT
	case BVec:
		return BoolT
	case Array:
		return t.Elem.Scalar()
	default:
		panic(t.Kind)
	}
}

// VectorOf builds a vector of the given scalar kind, or the scalar itself
// for n == 1.
func VectorOf(scalar Type, n int) Type {
	if n == 1 {
		return scalar
	}

	var k Kind

	switch scalar.Kind {
	case Float:
		k = Vec
	case Int:
		k = IVec
	case UInt:
		k = UVec
	case Bool:
		k = BVec
	default:
		panic(scalar.Kind)
	}

	return Type{Kind: k, N: uint8(n)}
}

func (t Type) IsScalar() bool {
	switch t.Kind {
	case Bool, Int, UInt, Float:
		return true
	}

	return false
}

func (t Type) IsVector() bool {
	switch t.Kind {
	case Vec, IVec, UVec, BVec:
		return true
	}

	return false
}

func (t Type) IsMatrix() bool { return t.Kind == Mat }

// IsIntegerFamily covers int, uint and their vectors.
func (t Type) IsIntegerFamily() bool {
	switch t.Kind {
	case Int, UInt, IVec, UVec:
		return true
	}

	return false
}

func (t Type) IsFloatFamily() bool {
	switch t.Kind {
	case Float, Vec, Mat:
		return true
	}

	return false
}

func (t Type) IsBoolFamily() bool {
	switch t.Kind {
	case Bool, BVec:
		return true
	}

	return false
}

func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Float:
		return "float"
	case Vec:
		return fmt.Sprintf("vec%d", t.N)
	case IVec:
		return fmt.Sprintf("ivec%d", t.N)
	case UVec:
		return fmt.Sprintf("uvec%d", t.N)
	case BVec:
		return fmt.Sprintf("bvec%d", t.N)
	case Mat:
		return fmt.Sprintf("mat%d", t.N)
	case Array:
		return fmt.Sprintf("%v[%d]", t.Elem, t.Len)
	default:
		return fmt.Sprintf("tp.Kind(%d)", t.Kind)
	}
}

func (s Signature) String() string {
	r := "("

	for i, p := range s.Params {
		if i != 0 {
			r += ", "
		}

		switch p.Qual {
		case Out:
			r += "out "
		case InOut:
			r += "inout "
		}

		r += p.Type.String()
	}

	return r + ") " + s.Return.String()
}

package tp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryArith(t *testing.T) {
	r, err := BinaryResult("+", Vec3T, Vec3T)
	require.NoError(t, err)
	assert.Equal(t, Vec3T, r)

	r, err = BinaryResult("*", Vec3T, FloatT)
	require.NoError(t, err)
	assert.Equal(t, Vec3T, r)

	r, err = BinaryResult("*", FloatT, Vec2T)
	require.NoError(t, err)
	assert.Equal(t, Vec2T, r)

	r, err = BinaryResult("/", IntT, UIntT)
	require.NoError(t, err)
	assert.Equal(t, UIntT, r)

	_, err = BinaryResult("+", Vec2T, Vec3T)
	assert.Error(t, err)

	_, err = BinaryResult("+", Vec3T, IntT)
	assert.Error(t, err)

	_, err = BinaryResult("+", BoolT, BoolT)
	assert.Error(t, err)
}

func TestBinaryMat(t *testing.T) {
	r, err := BinaryResult("*", Mat3T, Mat3T)
	require.NoError(t, err)
	assert.Equal(t, Mat3T, r)

	r, err = BinaryResult("*", Mat3T, Vec3T)
	require.NoError(t, err)
	assert.Equal(t, Vec3T, r)

	r, err = BinaryResult("*", Vec3T, Mat3T)
	require.NoError(t, err)
	assert.Equal(t, Vec3T, r)

	r, err = BinaryResult("*", Mat2T, FloatT)
	require.NoError(t, err)
	assert.Equal(t, Mat2T, r)

	r, err = BinaryResult("+", Mat4T, Mat4T)
	require.NoError(t, err)
	assert.Equal(t, Mat4T, r)

	_, err = BinaryResult("*", Mat3T, Vec2T)
	assert.Error(t, err)

	_, err = BinaryResult("*", Mat2T, Mat3T)
	assert.Error(t, err)
}

func TestBinaryCompare(t *testing.T) {
	r, err := BinaryResult("==", Vec3T, Vec3T)
	require.NoError(t, err)
	assert.Equal(t, BoolT, r)

	r, err = BinaryResult("<", FloatT, FloatT)
	require.NoError(t, err)
	assert.Equal(t, BoolT, r)

	_, err = BinaryResult("<", Vec2T, Vec2T)
	assert.Error(t, err)

	_, err = BinaryResult("<", BoolT, BoolT)
	assert.Error(t, err)

	_, err = BinaryResult("==", Vec2T, Vec3T)
	assert.Error(t, err)
}

func TestBinaryIntOnly(t *testing.T) {
	r, err := BinaryResult("%", IntT, IntT)
	require.NoError(t, err)
	assert.Equal(t, IntT, r)

	r, err = BinaryResult("%", IVec2T, UIntT)
	require.NoError(t, err)
	assert.Equal(t, UVec2T, r)

	r, err = BinaryResult("<<", UIntT, IntT)
	require.NoError(t, err)
	assert.Equal(t, UIntT, r)

	_, err = BinaryResult("%", FloatT, FloatT)
	assert.Error(t, err)

	_, err = BinaryResult("&", Vec2T, Vec2T)
	assert.Error(t, err)
}

func TestBinaryLogical(t *testing.T) {
	r, err := BinaryResult("&&", BoolT, BoolT)
	require.NoError(t, err)
	assert.Equal(t, BoolT, r)

	_, err = BinaryResult("||", IntT, BoolT)
	assert.Error(t, err)
}

func TestUnary(t *testing.T) {
	r, err := UnaryResult("-", Vec3T)
	require.NoError(t, err)
	assert.Equal(t, Vec3T, r)

	r, err = UnaryResult("!", BoolT)
	require.NoError(t, err)
	assert.Equal(t, BoolT, r)

	r, err = UnaryResult("~", IVec2T)
	require.NoError(t, err)
	assert.Equal(t, IVec2T, r)

	_, err = UnaryResult("-", BoolT)
	assert.Error(t, err)

	_, err = UnaryResult("!", IntT)
	assert.Error(t, err)

	_, err = UnaryResult("~", FloatT)
	assert.Error(t, err)
}

func TestConstructor(t *testing.T) {
	sh, err := Constructor(Vec3T, []Type{FloatT})
	require.NoError(t, err)
	assert.Equal(t, ShapeBroadcast, sh)

	// int literals convert implicitly
	sh, err = Constructor(Vec3T, []Type{IntT, IntT, IntT})
	require.NoError(t, err)
	assert.Equal(t, ShapeConcat, sh)

	sh, err = Constructor(Vec4T, []Type{Vec2T, FloatT, FloatT})
	require.NoError(t, err)
	assert.Equal(t, ShapeConcat, sh)

	sh, err = Constructor(Vec2T, []Type{Vec4T})
	require.NoError(t, err)
	assert.Equal(t, ShapeVectorResize, sh)

	sh, err = Constructor(FloatT, []Type{IntT})
	require.NoError(t, err)
	assert.Equal(t, ShapeScalarCast, sh)

	sh, err = Constructor(Mat3T, []Type{FloatT})
	require.NoError(t, err)
	assert.Equal(t, ShapeMatIdentity, sh)

	sh, err = Constructor(Mat3T, []Type{Vec3T, Vec3T, Vec3T})
	require.NoError(t, err)
	assert.Equal(t, ShapeMatColumns, sh)

	sh, err = Constructor(Mat2T, []Type{Mat4T})
	require.NoError(t, err)
	assert.Equal(t, ShapeMatResize, sh)

	sh, err = Constructor(Mat2T, []Type{FloatT, FloatT, FloatT, FloatT})
	require.NoError(t, err)
	assert.Equal(t, ShapeMatScalars, sh)

	_, err = Constructor(Vec3T, []Type{FloatT, FloatT})
	assert.Error(t, err)

	_, err = Constructor(Vec3T, []Type{Vec2T})
	assert.Error(t, err)

	_, err = Constructor(Vec3T, nil)
	assert.Error(t, err)

	_, err = Constructor(Mat3T, []Type{Vec3T, Vec3T})
	assert.Error(t, err)
}

func TestTypeHelpers(t *testing.T) {
	assert.Equal(t, 3, Vec3T.Components())
	assert.Equal(t, 9, Mat3T.Components())
	assert.Equal(t, 1, FloatT.Components())
	assert.Equal(t, 8, ArrayOf(Vec2T, 4).Components())

	assert.Equal(t, FloatT, Mat4T.Scalar())
	assert.Equal(t, IntT, IVec2T.Scalar())
	assert.Equal(t, BoolT, BVec3T.Scalar())

	assert.Equal(t, Vec3T, VectorOf(FloatT, 3))
	assert.Equal(t, UIntT, VectorOf(UIntT, 1))

	assert.Equal(t, "vec3", Vec3T.String())
	assert.Equal(t, "mat2", Mat2T.String())
	assert.Equal(t, "float[4]", ArrayOf(FloatT, 4).String())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	sig := Signature{
		Params: []Param{{Name: "x", Type: FloatT}},
		Return: FloatT,
	}

	d, err := reg.Register("f", sig)
	require.NoError(t, err)
	assert.Equal(t, FuncID(0), d.ID)

	// overload on a different parameter list
	_, err = reg.Register("f", Signature{
		Params: []Param{{Name: "v", Type: Vec3T}},
		Return: Vec3T,
	})
	require.NoError(t, err)

	// exact duplicate is rejected
	_, err = reg.Register("f", sig)
	assert.Error(t, err)

	got, err := reg.Resolve("f", []Type{Vec3T})
	require.NoError(t, err)
	assert.Equal(t, Vec3T, got.Sig.Return)

	_, err = reg.Resolve("f", []Type{IntT})
	assert.Error(t, err)

	_, err = reg.Resolve("g", []Type{FloatT})
	assert.Error(t, err)

	assert.Len(t, reg.Funcs(), 2)
	assert.Len(t, reg.Lookup("f"), 2)
}

package qmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupBuiltin(t *testing.T) {
	assert.Equal(t, BuiltinQ32Mul, LookupBuiltin("__lp_q32_mul"))
	assert.Equal(t, BuiltinWorley2, LookupBuiltin("__lpfx_worley2"))

	// legacy frontend names resolve to the same ids
	assert.Equal(t, BuiltinWorley2, LookupBuiltin("lpfx_worley2f"))
	assert.Equal(t, BuiltinRGB2HSV, LookupBuiltin("lpfx_rgb2hsvf"))

	assert.Equal(t, BuiltinInvalid, LookupBuiltin("lpfx_worley2"))
	assert.Equal(t, BuiltinInvalid, LookupBuiltin("no_such"))
	assert.Equal(t, BuiltinInvalid, LookupBuiltin(""))
}

func TestBuiltinInfo(t *testing.T) {
	for _, id := range Builtins() {
		assert.NotEqual(t, "invalid", id.Name(), "id %d", id)
		assert.Equal(t, id, LookupBuiltin(id.Name()))
		assert.Greater(t, id.ArgWords(), 0, "%v", id.Name())
		assert.Greater(t, id.RetWords(), 0, "%v", id.Name())
	}

	assert.False(t, BuiltinQ32Sin.StructReturn())
	assert.True(t, BuiltinHSV2RGB.StructReturn())
}

func TestInvoke(t *testing.T) {
	r := Invoke(BuiltinQ32Mul, []int32{int32(FromInt(2)), int32(FromInt(3))})
	assert.Equal(t, []int32{int32(FromInt(6))}, r)

	r = Invoke(BuiltinQ32Sqrt, []int32{int32(FromInt(9))})
	assert.Equal(t, []int32{int32(FromInt(3))}, r)

	r = Invoke(BuiltinWorley2, []int32{int32(One), int32(Half), 7})
	assert.Len(t, r, 1)
	assert.Equal(t, int32(Worley2(V2(One, Half), 7)), r[0])

	r = Invoke(BuiltinRGB2HSV, []int32{int32(One), 0, 0})
	assert.Equal(t, []int32{0, int32(One), int32(One)}, r)

	assert.Nil(t, Invoke(BuiltinInvalid, nil))
}

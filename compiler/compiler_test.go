package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpfx.dev/go/lpfx/emu"
	"lpfx.dev/go/lpfx/qmath"
)

func run(t *testing.T, src, fn string, args ...float64) []qmath.Q32 {
	t.Helper()

	ctx := context.Background()

	res, err := Compile(ctx, "test", []byte(src), Options{})
	require.NoError(t, err)

	_, f := res.Module.FuncByName(fn)
	require.NotNil(t, f, fn)

	raw := make([]uint32, len(args))
	for i, a := range args {
		raw[i] = uint32(qmath.FromFloat(a))
	}

	e := emu.New(res.Image, 0)

	out, err := e.CallCompiled(ctx, fn, f.Sig, raw)
	require.NoError(t, err)

	q := make([]qmath.Q32, len(out))
	for i, w := range out {
		q[i] = qmath.Q32(w)
	}

	return q
}

func TestScalar(t *testing.T) {
	out := run(t, `
float f(float x) {
	return x * 2.0 + 1.0;
}
`, "f", 3)

	require.Len(t, out, 1)
	assert.Equal(t, qmath.FromInt(7), out[0])
}

func TestVectorResult(t *testing.T) {
	out := run(t, `
vec3 f() {
	return max(vec3(7.0, 2.0, 9.0), vec3(3.0, 8.0, 5.0));
}
`, "f")

	require.Len(t, out, 3)
	assert.Equal(t, qmath.FromInt(7), out[0])
	assert.Equal(t, qmath.FromInt(8), out[1])
	assert.Equal(t, qmath.FromInt(9), out[2])
}

func TestControlFlow(t *testing.T) {
	out := run(t, `
float f(float x) {
	float s = 0.0;

	for (int i = 0; i < 3; i++) {
		s += sqrt(x);
	}

	if (s > 100.0) {
		s = 100.0;
	}

	return s;
}
`, "f", 4)

	require.Len(t, out, 1)
	assert.Equal(t, qmath.FromInt(6), out[0])
}

func TestUserCalls(t *testing.T) {
	out := run(t, `
float square(float x) {
	return x * x;
}

vec2 f(float x) {
	return vec2(square(x), square(x + 1.0));
}
`, "f", 3)

	require.Len(t, out, 2)
	assert.Equal(t, qmath.FromInt(9), out[0])
	assert.Equal(t, qmath.FromInt(16), out[1])
}

func TestSwizzleAndConstruct(t *testing.T) {
	out := run(t, `
vec4 f(float x) {
	vec2 a = vec2(x, x + 1.0);

	return vec4(a.yx, 2.0 * a);
}
`, "f", 1)

	require.Len(t, out, 4)
	assert.Equal(t, qmath.FromInt(2), out[0])
	assert.Equal(t, qmath.FromInt(1), out[1])
	assert.Equal(t, qmath.FromInt(2), out[2])
	assert.Equal(t, qmath.FromInt(4), out[3])
}

func TestNoisePattern(t *testing.T) {
	out := run(t, `
vec3 f(vec2 uv, float time) {
	float n = noise2(uv * 4.0, 1u);
	float w = worley2(uv + vec2(time, 0.0), 2u);

	return hsv2rgb(vec3(fract(n + w), 1.0, 1.0));
}
`, "f", 0.3, 0.7, 1.5)

	require.Len(t, out, 3)

	for i, c := range out {
		assert.True(t, c >= 0 && c <= qmath.One, "channel %d = %v", i, c)
	}
}

func TestSaturation(t *testing.T) {
	out := run(t, `
float f(float x) {
	return x + x;
}
`, "f", 30000)

	require.Len(t, out, 1)
	assert.Equal(t, qmath.Max, out[0])
}

func TestCompileErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Compile(ctx, "test", []byte(`float f() { return y; }`), Options{})
	assert.Error(t, err)

	_, err = Compile(ctx, "test", []byte(`float f() { return 1.0`), Options{})
	assert.Error(t, err)

	assert.Error(t, Check(ctx, "test", []byte(`float f(float x) { if (x) { return x; } return x; }`)))
	assert.NoError(t, Check(ctx, "test", []byte(`float f(float x) { return x; }`)))
}

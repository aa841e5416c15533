package front

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpfx.dev/go/lpfx/compiler/ir"
)

func parseSrc(t *testing.T, src string) (*State, error) {
	t.Helper()

	ctx := context.Background()

	s := New()
	s.AddFile(ctx, "test.glsl", []byte(src))

	return s, s.Parse(ctx)
}

func analyzeSrc(t *testing.T, src string) (*State, error) {
	t.Helper()

	s, err := parseSrc(t, src)
	require.NoError(t, err)

	return s, s.Analyze(context.Background())
}

func generateSrc(t *testing.T, src string) *ir.Module {
	t.Helper()

	s, err := analyzeSrc(t, src)
	require.NoError(t, err)

	m, err := s.Generate(context.Background(), "test")
	require.NoError(t, err)

	return m
}

func TestParse(t *testing.T) {
	_, err := parseSrc(t, `
float add(float a, float b) {
	return a + b;
}

vec3 pattern(vec2 uv, float time) {
	float t = sin(time * 0.5);
	vec3 c = vec3(uv.x, uv.y, t);

	for (int i = 0; i < 4; i = i + 1) {
		c = c * 0.9;
	}

	if (c.x > 1.0) {
		c.x = 1.0;
	}

	return c;
}
`)
	require.NoError(t, err)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		`float f( { return 1.0; }`,
		`float f() { return 1.0`,
		`float f() { 1.0 +; }`,
		`banana f() { return 1.0; }`,
		`float f() { if x > 1.0 {} }`,
	} {
		_, err := parseSrc(t, src)
		assert.Error(t, err, "%q", src)
	}
}

func TestAnalyzeOK(t *testing.T) {
	_, err := analyzeSrc(t, `
float helper(float x) { return x * 2.0; }

vec3 pattern(vec2 uv, float time) {
	float n = noise2(uv * 4.0, 1u);
	float w = worley2(uv, 2u);
	vec3 hsv = vec3(fract(time), 1.0, helper(n) + w);

	return hsv2rgb(hsv);
}
`)
	require.NoError(t, err)
}

func TestParamScope(t *testing.T) {
	// a parameter shares the body's top-level scope and may only be
	// shadowed in a nested block
	_, err := analyzeSrc(t, `
float f(float x) {
	if (x > 0.0) {
		float x = 1.0;
		return x;
	}

	return x;
}
`)
	require.NoError(t, err)
}

func TestAnalyzeErrors(t *testing.T) {
	for _, tc := range []struct{ name, src string }{
		{"cond not bool", `float f(float x) { if (x) { return 1.0; } return 0.0; }`},
		{"undeclared", `float f() { return y; }`},
		{"redeclared", `float f(float x) { float x = 1.0; return x; }`},
		{"const assign", `float f() { const float c = 1.0; c = 2.0; return c; }`},
		{"const no init", `float f() { const float c; return 0.0; }`},
		{"return mismatch", `float f() { return vec2(1.0, 2.0); }`},
		{"missing return value", `float f() { return; }`},
		{"swizzle dup store", `vec2 f(vec2 v) { v.xx = vec2(1.0, 2.0); return v; }`},
		{"bad swizzle", `float f(vec2 v) { return v.z; }`},
		{"binary mismatch", `float f(vec2 v) { return v + 1; }`},
		{"bad call", `float f() { return worley2(1.0, 1u); }`},
		{"arg count", `float g(float x) { return x; } float f() { return g(); }`},
		{"out arg not lvalue", `void g(out float x) { x = 1.0; } float f() { g(1.0); return 0.0; }`},
		{"expr stmt not call", `float f(float x) { x + 1.0; return x; }`},
	} {
		_, err := analyzeSrc(t, tc.src)
		assert.Error(t, err, tc.name)
	}
}

func TestGenerateScalar(t *testing.T) {
	m := generateSrc(t, `
float f(float a, float b) {
	return a * b + 1.0;
}
`)
	require.Len(t, m.Funcs, 1)

	f := m.Funcs[0]
	assert.Equal(t, "f", f.Name)
	assert.Equal(t, []ir.Class{ir.ClassF32, ir.ClassF32}, f.Sig.Params)
	assert.Equal(t, ir.ClassF32, f.Sig.Ret)
	assert.False(t, f.Sig.StructReturn)

	require.NoError(t, ir.Verify(f))
}

func TestGenerateAggregate(t *testing.T) {
	m := generateSrc(t, `
vec3 f(vec2 uv) {
	return vec3(uv, 1.0);
}
`)
	f := m.Funcs[0]

	// three result words return through a leading pointer
	assert.True(t, f.Sig.StructReturn)
	assert.Equal(t, 3, f.Sig.RetWords)
	assert.Equal(t, ir.ClassPtr, f.Sig.Params[0])
	assert.Equal(t, ir.ClassNone, f.Sig.Ret)

	require.NoError(t, ir.Verify(f))
}

func TestGenerateControlFlow(t *testing.T) {
	m := generateSrc(t, `
float f(float x) {
	float acc = 0.0;

	for (int i = 0; i < 8; i = i + 1) {
		if (x > 0.5 && i % 2 == 0) {
			acc = acc + x;
		} else {
			acc = acc - 1.0;
		}
	}

	return acc;
}
`)
	f := m.Funcs[0]

	require.NoError(t, ir.Verify(f))
	assert.Greater(t, len(f.Blocks), 3)
}

func TestGenerateCalls(t *testing.T) {
	m := generateSrc(t, `
vec3 rot(vec3 c) { return c.zyx; }

vec3 pattern(vec2 uv, float time) {
	float n = noise2(uv, 3u);
	vec3 c = vec3(n, sin(time), worley2(uv, 1u));

	return rot(hsv2rgb(c));
}
`)
	require.Len(t, m.Funcs, 2)

	for _, f := range m.Funcs {
		require.NoError(t, ir.Verify(f), f.Name)
	}

	_, f := m.FuncByName("pattern")
	require.NotNil(t, f)

	exts := map[string]bool{}

	for _, b := range f.Blocks {
		for _, x := range b.Code {
			if x.Op == ir.CallExt {
				exts[x.Ext.Name] = true
				assert.Equal(t, ir.ExternTestCase, x.Ext.Kind)
			}
		}
	}

	assert.True(t, exts["lpfx_noise2f"], "%v", exts)
	assert.True(t, exts["lpfx_worley2f"], "%v", exts)
	assert.True(t, exts["lpfx_hsv2rgbf"], "%v", exts)
}

func TestGenerateOutParams(t *testing.T) {
	m := generateSrc(t, `
void split(float x, out float ip, out float fp) {
	ip = floor(x);
	fp = fract(x);
}

float f(float x) {
	float a = 0.0;
	float b = 0.0;

	split(x, a, b);

	return a + b;
}
`)
	for _, f := range m.Funcs {
		require.NoError(t, ir.Verify(f), f.Name)
	}

	_, sp := m.FuncByName("split")
	require.NotNil(t, sp)

	assert.Equal(t, []ir.Class{ir.ClassF32, ir.ClassPtr, ir.ClassPtr}, sp.Sig.Params)
}

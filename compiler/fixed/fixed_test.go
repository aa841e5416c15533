package fixed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpfx.dev/go/lpfx/compiler/front"
	"lpfx.dev/go/lpfx/compiler/ir"
	"lpfx.dev/go/lpfx/qmath"
)

func transformSrc(t *testing.T, src string) *ir.Module {
	t.Helper()

	ctx := context.Background()

	s := front.New()
	s.AddFile(ctx, "test.glsl", []byte(src))

	require.NoError(t, s.Parse(ctx))
	require.NoError(t, s.Analyze(ctx))

	fm, err := s.Generate(ctx, "test")
	require.NoError(t, err)

	qm, err := Transform(ctx, fm)
	require.NoError(t, err)

	return qm
}

func TestNoFloatSurvives(t *testing.T) {
	m := transformSrc(t, `
vec3 pattern(vec2 uv, float time) {
	float n = noise2(uv * 4.0, 1u);
	vec3 c = vec3(fract(time), n, worley2(uv, 2u));

	if (c.x > 0.5) {
		c = c * 0.5;
	}

	for (int i = 0; i < 3; i = i + 1) {
		c.y = c.y + sin(time + float(i));
	}

	return hsv2rgb(c);
}
`)
	for _, f := range m.Funcs {
		assert.False(t, f.HasFloat(), f.Name)
		require.NoError(t, ir.Verify(f), f.Name)

		for _, b := range f.Blocks {
			for _, x := range b.Code {
				assert.False(t, x.Op.IsFloat(), "%v in %v", x.Op, f.Name)
			}
		}
	}
}

func TestConstLowering(t *testing.T) {
	m := transformSrc(t, `
float f() {
	return 1.5;
}
`)
	_, f := m.FuncByName("f")
	require.NotNil(t, f)

	found := false

	for _, b := range f.Blocks {
		for _, x := range b.Code {
			if x.Op == ir.IConst && x.Imm == int64(qmath.FromFloat(1.5)) {
				found = true
			}
		}
	}

	assert.True(t, found, "1.5 should lower to raw %d", qmath.FromFloat(1.5))
}

func TestExternRebind(t *testing.T) {
	m := transformSrc(t, `
float f(vec2 uv) {
	return worley2(uv, 7u) * noise2(uv, 1u);
}
`)
	_, f := m.FuncByName("f")
	require.NotNil(t, f)

	names := map[string]bool{}

	for _, b := range f.Blocks {
		for _, x := range b.Code {
			if x.Op != ir.CallExt {
				continue
			}

			assert.Equal(t, ir.ExternUser, x.Ext.Kind)
			names[x.Ext.Name] = true

			id := qmath.LookupBuiltin(x.Ext.Name)
			assert.NotEqual(t, qmath.BuiltinInvalid, id, x.Ext.Name)
		}
	}

	assert.True(t, names["__lpfx_worley2"], "%v", names)
	assert.True(t, names["__lpfx_noise2"], "%v", names)

	// the multiply of two runtime values goes through the q32 helper
	assert.True(t, names["__lp_q32_mul"], "%v", names)
}

func TestIntOpsPassThrough(t *testing.T) {
	m := transformSrc(t, `
int f(int a, int b) {
	return (a + b * 3) % 7;
}
`)
	_, f := m.FuncByName("f")
	require.NotNil(t, f)

	require.NoError(t, ir.Verify(f))
	assert.False(t, f.HasFloat())

	ops := map[ir.Op]bool{}

	for _, b := range f.Blocks {
		for _, x := range b.Code {
			ops[x.Op] = true
		}
	}

	assert.True(t, ops[ir.IAdd])
	assert.True(t, ops[ir.IMul])
	assert.True(t, ops[ir.IRemS])
}

func TestFloorCeilLowering(t *testing.T) {
	m := transformSrc(t, `
vec2 f(float x) {
	return vec2(floor(x), ceil(x));
}
`)
	_, f := m.FuncByName("f")
	require.NotNil(t, f)

	require.NoError(t, ir.Verify(f))

	// floor and ceil lower to masking, not calls
	for _, b := range f.Blocks {
		for _, x := range b.Code {
			assert.NotEqual(t, ir.CallExt, x.Op)
		}
	}
}

func TestSignaturesMapped(t *testing.T) {
	m := transformSrc(t, `
vec3 f(vec2 uv) {
	return vec3(uv, 1.0);
}
`)
	_, f := m.FuncByName("f")
	require.NotNil(t, f)

	assert.True(t, f.Sig.StructReturn)
	assert.Equal(t, 3, f.Sig.RetWords)

	for _, c := range f.Sig.Params {
		assert.NotEqual(t, ir.ClassF32, c)
	}
}

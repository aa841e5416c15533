package objfile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpfx.dev/go/lpfx/compiler"
	"lpfx.dev/go/lpfx/emu"
	"lpfx.dev/go/lpfx/objfile"
	"lpfx.dev/go/lpfx/qmath"
)

const src = `
float scale(float x) {
	return x * 2.0;
}

float f(float x) {
	return scale(x) + sqrt(x);
}
`

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	res, err := compiler.Compile(ctx, "test", []byte(src), compiler.Options{})
	require.NoError(t, err)

	info, err := objfile.Load(ctx, res.Object)
	require.NoError(t, err)

	// loading places functions where the in-memory link did
	assert.Equal(t, res.Image.Symbols, info.Image.Symbols)
	assert.Equal(t, res.Image.Builtins, info.Image.Builtins)
	assert.Equal(t, res.Image.Base, info.Image.Base)

	// relocation produces the exact same text
	assert.Equal(t, res.Image.Text, info.Image.Text)

	assert.ElementsMatch(t, []string{"scale", "f"}, info.Funcs)
	assert.Contains(t, info.Externs, "__lp_q32_mul")
	assert.Contains(t, info.Externs, "__lp_q32_sqrt")
}

func TestLoadedImageRuns(t *testing.T) {
	ctx := context.Background()

	res, err := compiler.Compile(ctx, "test", []byte(src), compiler.Options{})
	require.NoError(t, err)

	info, err := objfile.Load(ctx, res.Object)
	require.NoError(t, err)

	_, f := res.Module.FuncByName("f")
	require.NotNil(t, f)

	e := emu.New(info.Image, 0)

	// f(4) = 4*2 + sqrt(4) = 10
	out, err := e.CallCompiled(ctx, "f", f.Sig, []uint32{uint32(qmath.FromInt(4))})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, qmath.FromInt(10), qmath.Q32(out[0]))
}

func TestLoadGarbage(t *testing.T) {
	ctx := context.Background()

	_, err := objfile.Load(ctx, []byte("not an object"))
	assert.Error(t, err)

	_, err = objfile.Load(ctx, nil)
	assert.Error(t, err)
}

func TestWriteDeterministic(t *testing.T) {
	ctx := context.Background()

	a, err := compiler.Compile(ctx, "test", []byte(src), compiler.Options{})
	require.NoError(t, err)

	b, err := compiler.Compile(ctx, "test", []byte(src), compiler.Options{})
	require.NoError(t, err)

	assert.Equal(t, a.Object, b.Object)
}

package qmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashDeterministic(t *testing.T) {
	assert.Equal(t, Hash(12345), Hash(12345))
	assert.NotEqual(t, Hash(12345), Hash(12346))

	assert.Equal(t, Hash2(1, 2, 7), Hash2(1, 2, 7))
	assert.NotEqual(t, Hash2(1, 2, 7), Hash2(2, 1, 7))
	assert.NotEqual(t, Hash2(1, 2, 7), Hash2(1, 2, 8))

	assert.Equal(t, Hash3(1, 2, 3, 7), Hash3(1, 2, 3, 7))
	assert.NotEqual(t, Hash3(1, 2, 3, 7), Hash3(3, 2, 1, 7))
}

func TestHashQRange(t *testing.T) {
	for i := int32(-50); i < 50; i++ {
		x := Q32(i * 1337)

		h := HashQ1(x, 1)
		assert.True(t, h >= 0 && h < One, "hash1(%v) = %v", x, h)

		h = HashQ2(V2(x, x.Neg()), 2)
		assert.True(t, h >= 0 && h < One, "hash2(%v) = %v", x, h)

		h = HashQ3(V3(x, x.Neg(), x.Add(One)), 3)
		assert.True(t, h >= 0 && h < One, "hash3(%v) = %v", x, h)
	}
}

func TestWorleyRange(t *testing.T) {
	for i := int32(-20); i < 20; i++ {
		p := V2(Q32(i*12345), Q32(i*54321))

		d := Worley2(p, 9)
		assert.True(t, d >= 0 && d <= One, "worley2(%v) = %v", p, d)
		assert.Equal(t, d, Worley2(p, 9))

		q := V3(p.X, p.Y, Q32(i*777))

		d = Worley3(q, 9)
		assert.True(t, d >= 0 && d <= One, "worley3(%v) = %v", q, d)
		assert.Equal(t, d, Worley3(q, 9))
	}
}

func TestNoiseRange(t *testing.T) {
	for i := int32(-20); i < 20; i++ {
		p := V2(Q32(i*23456), Q32(i*-7890))

		// truncating multiplies may undershoot the bound by a few ulps
		slack := Q32(16)

		n := Noise2(p, 5)
		assert.True(t, n >= -One-slack && n <= One+slack, "noise2(%v) = %v", p, n)
		assert.Equal(t, n, Noise2(p, 5))

		q := V3(p.X, p.Y, Q32(i*31415))

		n = Noise3(q, 5)
		assert.True(t, n >= -One-slack && n <= One+slack, "noise3(%v) = %v", q, n)
		assert.Equal(t, n, Noise3(q, 5))
	}
}

func TestNoiseVaries(t *testing.T) {
	seen := map[Q32]bool{}

	for i := int32(0); i < 16; i++ {
		seen[Noise2(V2(Q32(i*40000), Q32(i*25000)), 1)] = true
	}

	assert.Greater(t, len(seen), 4, "noise should not be flat")
}

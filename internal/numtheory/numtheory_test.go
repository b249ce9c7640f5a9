package numtheory

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModPow(t *testing.T) {
	tests := []struct {
		name string
		base uint64
		exp  uint32
		mod  uint32
	}{
		{"small", 4, 13, 497},
		{"zero base", 0, 5, 97},
		{"base above modulus", 1000, 3, 7},
		{"fermat", 2, 250, 251},
		{"encrypt A", 65, 7, 25283},
		{"wide base", 1 << 60, 12345, 65521},
		{"wide modulus", math.MaxUint32 - 1, math.MaxUint32, math.MaxUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := new(big.Int).Exp(
				new(big.Int).SetUint64(tt.base),
				new(big.Int).SetUint64(uint64(tt.exp)),
				new(big.Int).SetUint64(uint64(tt.mod)),
			).Uint64()
			assert.Equal(t, uint32(want), ModPow(tt.base, tt.exp, tt.mod))
		})
	}

	assert.Equal(t, uint32(445), ModPow(4, 13, 497))
	assert.Equal(t, uint32(1), ModPow(2, 250, 251))
}

func TestModPowZeroExponent(t *testing.T) {
	for _, m := range []uint32{2, 3, 97, 25283, math.MaxUint32} {
		for _, b := range []uint64{0, 1, 2, 65, 1 << 40} {
			assert.Equal(t, uint32(1), ModPow(b, 0, m), "base %d mod %d", b, m)
		}
	}
}

func TestModPowModulusOne(t *testing.T) {
	for _, b := range []uint64{0, 1, 7, 1 << 50} {
		for _, e := range []uint32{0, 1, 9, math.MaxUint32} {
			assert.Zero(t, ModPow(b, e, 1))
		}
	}
}

func TestGCD(t *testing.T) {
	tests := []struct {
		a, b, want uint32
	}{
		{12, 18, 6},
		{18, 12, 6},
		{17, 5, 1},
		{7, 24960, 1},
		{24960, 130, 130},
		{0, 9, 9},
		{0, 0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GCD(tt.a, tt.b), "gcd(%d, %d)", tt.a, tt.b)
	}
}

func TestGCDLaws(t *testing.T) {
	for _, a := range []uint32{0, 1, 5, 60, 128, 255, 24960, 65535} {
		assert.Equal(t, a, GCD(a, 0))
		for _, b := range []uint32{1, 3, 16, 97, 130, 4096} {
			assert.Equal(t, GCD(b, a%b), GCD(a, b), "gcd(%d, %d)", a, b)
		}
	}
}

func TestModInverse(t *testing.T) {
	tests := []struct {
		a, b uint32
	}{
		{3, 11},
		{7, 24960},
		{17, 3120},
		{65537, 3233 * 97},
		{1, 2},
		{24959, 24960},
		{100, 3},
	}

	for _, tt := range tests {
		require.Equal(t, uint32(1), GCD(tt.a, tt.b))
		inv, err := ModInverse(tt.a, tt.b)
		require.NoError(t, err)
		assert.Less(t, inv, tt.b)
		assert.Equal(t, uint64(1), uint64(tt.a)*uint64(inv)%uint64(tt.b), "inverse of %d mod %d", tt.a, tt.b)
	}
}

func TestModInverseNormalises(t *testing.T) {
	// the raw Bézout coefficient for (7, 24960) is negative
	inv, err := ModInverse(7, 24960)
	require.NoError(t, err)
	assert.Equal(t, uint32(14263), inv)
}

func TestModInverseModulusOne(t *testing.T) {
	inv, err := ModInverse(5, 1)
	require.NoError(t, err)
	assert.Zero(t, inv)
}

func TestModInverseUndefined(t *testing.T) {
	for _, tt := range []struct{ a, b uint32 }{
		{4, 8},
		{130, 24960},
		{0, 7},
		{5, 0},
	} {
		_, err := ModInverse(tt.a, tt.b)
		assert.ErrorIs(t, err, ErrInverseUndefined, "inverse of %d mod %d", tt.a, tt.b)
	}
}

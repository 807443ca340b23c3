package common

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "link token size", size: 32},
		{name: "short", size: 4},
		{name: "zero", size: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := MakeRandHexString(tt.size)
			require.NoError(t, err)
			assert.Len(t, s, tt.size*2)

			_, err = hex.DecodeString(s)
			assert.NoError(t, err)
		})
	}
}

func TestMakeRandHexString_Distinct(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		s, err := MakeRandHexString(32)
		require.NoError(t, err)
		_, dup := seen[s]
		require.False(t, dup, "duplicate token %q", s)
		seen[s] = struct{}{}
	}
}

func TestGenerateRandByteArray(t *testing.T) {
	b := GenerateRandByteArray(24)
	assert.Len(t, b, 24)
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf)

	assert.NotPanics(t, func() { WipeByteArray(nil) })
}

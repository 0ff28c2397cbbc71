package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferenceCode(t *testing.T) {
	cases := []struct {
		id   int64
		want int64
	}{
		{5, 510},
		{1, 107},
		{10, 1003},
		{12345, 1234503},
		{99999999, 9999999905},
	}

	for _, tc := range cases {
		got, err := GenerateReferenceCode(tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "id %d", tc.id)
	}

	t.Run("deterministic", func(t *testing.T) {
		a, _ := GenerateReferenceCode(4242)
		b, _ := GenerateReferenceCode(4242)
		assert.Equal(t, a, b)
	})

	t.Run("out of range", func(t *testing.T) {
		for _, id := range []int64{0, -7, 123456789} {
			_, err := GenerateReferenceCode(id)
			assert.ErrorIs(t, err, ErrReferenceCodeRange)
		}
	})
}

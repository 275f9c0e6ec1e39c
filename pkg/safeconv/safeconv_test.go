package safeconv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustIntToUint32(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint32(42), MustIntToUint32(42))
	})

	t.Run("max", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, MaxUint32, MustIntToUint32(int(MaxUint32)))
	})

	t.Run("negative_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
			MustIntToUint32(-1)
		})
	})

	t.Run("overflow_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
			MustIntToUint32(int(MaxUint32) + 1)
		})
	})
}

func TestMustInt64ToUint64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), MustInt64ToUint64(0))
	assert.Equal(t, uint64(math.MaxInt64), MustInt64ToUint64(math.MaxInt64))
	assert.PanicsWithValue(t, "safeconv: negative int64 to uint64 conversion", func() {
		MustInt64ToUint64(-1)
	})
}

func TestClampUint64ToInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7, ClampUint64ToInt(7))
	assert.Equal(t, math.MaxInt, ClampUint64ToInt(math.MaxUint64))
}

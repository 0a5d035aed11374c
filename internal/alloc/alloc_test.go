package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	testCases := []struct {
		name string
		used []int
		want int
	}{
		{"empty set allocates zero", nil, 0},
		{"dense set allocates next", []int{0, 1, 2}, 3},
		{"freed address is reused first", []int{0, 2, 3}, 1},
		{"zero freed is reused", []int{1, 2}, 0},
		{"out-of-range values are ignored", []int{-1, 99, 0}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Next(tc.used)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNext_Deterministic(t *testing.T) {
	used := []int{3, 0, 5}
	first, err := Next(used)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Next(used)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNext_CapacityExceeded(t *testing.T) {
	used := make([]int, Capacity)
	for i := range used {
		used[i] = i
	}
	_, err := Next(used)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// One slot freed anywhere makes allocation succeed again.
	used[17] = -1
	addr, err := Next(used)
	assert.NoError(t, err)
	assert.Equal(t, 17, addr)
}

package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTarget(t *testing.T) {
	got, err := ParseTarget("PAIRED")
	assert.NoError(t, err)
	assert.Equal(t, StatePaired, got)

	// PENDING is a valid state but not a reportable target.
	_, err = ParseTarget("PENDING")
	assert.ErrorIs(t, err, ErrUnknownState)

	_, err = ParseTarget("paired")
	assert.ErrorIs(t, err, ErrUnknownState)

	_, err = ParseTarget("BROKEN")
	assert.ErrorIs(t, err, ErrUnknownState)

	_, err = ParseTarget("")
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestTransition(t *testing.T) {
	next, err := Transition(StatePending, StatePaired)
	assert.NoError(t, err)
	assert.Equal(t, StatePaired, next)

	// Re-reporting the reached state is a no-op success.
	next, err = Transition(StatePaired, StatePaired)
	assert.NoError(t, err)
	assert.Equal(t, StatePaired, next)

	// PAIRED never falls back to PENDING.
	_, err = Transition(StatePaired, StatePending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeID(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"uppercase passes through", "1A2B3C01", "1A2B3C01", false},
		{"lowercase is canonicalized", "1a2b3c01", "1A2B3C01", false},
		{"mixed case", "DeadBeef", "DEADBEEF", false},
		{"surrounding whitespace trimmed", "  1A2B3C01 ", "1A2B3C01", false},
		{"too short", "1A2B3C", "", true},
		{"too long", "1A2B3C0102", "", true},
		{"non-hex characters", "1A2B3CZZ", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NodeID(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadNodeID)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNodeAddress(t *testing.T) {
	addr, err := NodeAddress("1A2B3C01")
	assert.NoError(t, err)
	assert.Equal(t, uint32(439041025), addr)

	addr, err = NodeAddress("FFFFFFFF")
	assert.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), addr)

	_, err = NodeAddress("not-hex!")
	assert.ErrorIs(t, err, ErrBadNodeID)
}

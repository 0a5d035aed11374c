package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// HubToken derives the 32-bit radio token for a hub's textual device id:
// the big-endian interpretation of the first four bytes of the SHA-256
// digest. The hub firmware embeds this token in wake signals and data
// packets so the radio payload never has to carry the full textual id.
// It is an addressing aid, not an authentication mechanism.
func HubToken(deviceID string) uint32 {
	sum := sha256.Sum256([]byte(deviceID))
	return binary.BigEndian.Uint32(sum[:4])
}

// TokenHex renders a hub token as a zero-padded lowercase hex string
// for display and debugging, e.g. "560f43ca".
func TokenHex(token uint32) string {
	return fmt.Sprintf("%08x", token)
}

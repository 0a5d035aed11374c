package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var nodeIDRe = regexp.MustCompile(`^[0-9A-Fa-f]{8}$`)

// ErrBadNodeID reports a sensor node id that is not 8 hex characters.
var ErrBadNodeID = fmt.Errorf("node id must be 8 hex characters")

// NodeID validates a sensor node's radio id and canonicalizes it to
// uppercase. Node ids are derived from the node's radio hardware
// address and are case-insensitive on input.
func NodeID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !nodeIDRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrBadNodeID, raw)
	}
	return strings.ToUpper(s), nil
}

// NodeAddress returns the numeric form of a canonical node id, parsed
// as base-16. The firmware uses this 32-bit value in the compact radio
// encoding alongside the logical address.
func NodeAddress(deviceID string) (uint32, error) {
	n, err := strconv.ParseUint(deviceID, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNodeID, deviceID)
	}
	return uint32(n), nil
}

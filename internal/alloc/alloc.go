package alloc

import "errors"

// Capacity is the size of a hub's logical address space. Hub hardware
// addresses are 32-bit and too large for the per-packet budget of the
// low-power radio link, so each active node is addressed by a small
// integer in [0, Capacity) instead. A logical address is meaningless
// outside its owning assignment.
const Capacity = 64

// ErrCapacityExceeded is returned when a hub's logical address space is
// fully occupied.
var ErrCapacityExceeded = errors.New("hub logical address space exhausted")

// Next returns the smallest non-negative address not present in used.
// Allocation is a pure function of the active set, so a retried request
// against unchanged state allocates the same address.
func Next(used []int) (int, error) {
	var taken [Capacity]bool
	for _, a := range used {
		if a >= 0 && a < Capacity {
			taken[a] = true
		}
	}
	for addr := 0; addr < Capacity; addr++ {
		if !taken[addr] {
			return addr, nil
		}
	}
	return 0, ErrCapacityExceeded
}

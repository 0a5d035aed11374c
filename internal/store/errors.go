package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown records and records the requester is not
	// allowed to see; the two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned on a device secret mismatch.
	ErrUnauthorized = errors.New("invalid device secret")

	// ErrAlreadyRetired is returned when retiring an assignment whose
	// unassigned_at is already set.
	ErrAlreadyRetired = errors.New("assignment already retired")

	// ErrDuplicateDevice is returned when registering a hub or node whose
	// device id is already taken.
	ErrDuplicateDevice = errors.New("device id already registered")
)

// ConflictError reports that a sensor node already holds an active
// assignment. It names the hub holding it so the dashboard can tell the
// operator what to unassign first.
type ConflictError struct {
	HubDeviceID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sensor node is already assigned to hub %q; unassign it first", e.HubDeviceID)
}

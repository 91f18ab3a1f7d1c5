package device

import "errors"

// Domain errors for the device registry.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when no record exists for a logical address.
	ErrNotFound = errors.New("device: not found")

	// ErrInvalidAddress is returned for a logical address outside 0-15.
	ErrInvalidAddress = errors.New("device: invalid logical address")
)

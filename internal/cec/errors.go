package cec

import "errors"

// Sentinel errors returned by the engine and its collaborators.
var (
	// ErrNotConnected indicates a bus operation was attempted while no
	// adapter is open. The operation is skipped, never retried.
	ErrNotConnected = errors.New("adapter not connected")

	// ErrConnectionFailed indicates the adapter could not be opened.
	ErrConnectionFailed = errors.New("adapter connection failed")

	// ErrAddressUnknown indicates device resolution failed and the
	// dependent bus call was skipped.
	ErrAddressUnknown = errors.New("device address unknown")

	// ErrWaitTimeout indicates SubmitAndWait expired before the command's
	// serial was published. The command remains queued and will still run.
	ErrWaitTimeout = errors.New("timed out waiting for command completion")

	// ErrUnknownOpcode indicates a symbolic opcode name was not recognised.
	ErrUnknownOpcode = errors.New("unknown opcode name")

	// ErrUnknownKey indicates a symbolic key name was not recognised.
	ErrUnknownKey = errors.New("unknown key name")
)

package device

import "errors"

// Domain errors for the device package.
var (
	// ErrIdentityNotFound is returned by Load when no identity is stored yet.
	ErrIdentityNotFound = errors.New("device: identity not found")

	// ErrInvalidIdentity is returned when saving an identity without an id.
	ErrInvalidIdentity = errors.New("device: invalid identity")

	// ErrNotIdentified is returned by Pairing operations before Identify.
	ErrNotIdentified = errors.New("device: not identified")

	// ErrPairingCode is returned when no pairing code could be generated.
	ErrPairingCode = errors.New("device: pairing code generation failed")
)

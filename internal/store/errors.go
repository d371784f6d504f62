package store

import "errors"

var (
	// ErrClosed is returned when operating on a closed store or watch.
	ErrClosed = errors.New("store: closed")

	// ErrDeviceNotFound is returned when no device matches the request.
	ErrDeviceNotFound = errors.New("store: device not found")

	// ErrCodeNotFound is returned when no unpaired device shows the code.
	ErrCodeNotFound = errors.New("store: no device with that pairing code")

	// ErrAmbiguousCode is returned when several unpaired devices show the
	// same code. The admin should wait for the next code rotation.
	ErrAmbiguousCode = errors.New("store: pairing code matches more than one device")

	// ErrInvalidArgument is returned for empty ids.
	ErrInvalidArgument = errors.New("store: invalid argument")

	// ErrCacheMiss is returned when the cache holds nothing for a key.
	ErrCacheMiss = errors.New("store: cache miss")
)

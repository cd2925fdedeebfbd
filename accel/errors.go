package accel

import "errors"

// Device errors.
var (
	// ErrNoDevice is returned when no compatible accelerator is present.
	ErrNoDevice = errors.New("accel: no compatible device found")

	// ErrUnknownDevice is returned when a device name is not registered.
	ErrUnknownDevice = errors.New("accel: unknown device")

	// ErrBoundTooLarge is returned when the sieve does not fit the device.
	ErrBoundTooLarge = errors.New("accel: bound exceeds device capacity")

	// ErrNotAllocated is returned when buffers are used before Allocate.
	ErrNotAllocated = errors.New("accel: buffers not allocated")

	// ErrAlreadyAllocated is returned when Allocate is called twice.
	ErrAlreadyAllocated = errors.New("accel: buffers already allocated")

	// ErrClosed is returned when a closed device is used.
	ErrClosed = errors.New("accel: device closed")

	// ErrInvalidPartition is returned for an unusable work-group layout.
	ErrInvalidPartition = errors.New("accel: invalid partition")

	// ErrSizeMismatch is returned when a host array does not match the
	// allocated device buffer.
	ErrSizeMismatch = errors.New("accel: host array size does not match device buffer")
)

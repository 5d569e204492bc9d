package notify

import "errors"

var (
	// ErrPastTime: the requested fire time is not in the future. Nothing was
	// scheduled; callers count it and move on.
	ErrPastTime = errors.New("fire time is not in the future")

	// ErrPlatform is a transient platform failure.
	ErrPlatform = errors.New("notification platform error")

	// ErrPlatformCorruption: the platform's persisted state was corrupt.
	// Recovery has already run when this is returned; the caller may retry.
	ErrPlatformCorruption = errors.New("notification platform state corrupted")

	// ErrPermission: the user has not granted the required permission.
	ErrPermission = errors.New("notification permission not granted")

	// ErrClosed is returned by a Gateway after Close.
	ErrClosed = errors.New("gateway closed")
)

// Errors a Platform implementation returns so the gateway can classify them
// without looking at error text.
var (
	ErrCorruptState     = errors.New("corrupt platform state")
	ErrPermissionDenied = errors.New("permission denied")
)

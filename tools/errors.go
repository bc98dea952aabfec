package tools

import "errors"

// Sentinel errors for dispatch outcomes. Callers match with errors.Is.
var (
	// ErrToolNotFound means the requested tool name is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments means the arguments failed the tool's declared
	// schema; the handler was never invoked.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrCallTimeout means a call exceeded the per-call deadline. Side
	// effects committed before the deadline remain in place.
	ErrCallTimeout = errors.New("tool call timed out")
)

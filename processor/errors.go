package processor

import "errors"

// Sentinel errors. Results carry them wrapped; use errors.Is.
var (
	// ErrInitialization wraps every failure to bring the processor to Ready.
	ErrInitialization = errors.New("processor: initialization failed")

	// ErrNotReady is returned when an operation needs a Ready processor.
	ErrNotReady = errors.New("device/pipeline not initialized")

	// ErrDispatch wraps failures while recording, submitting or waiting on GPU work.
	ErrDispatch = errors.New("processor: dispatch failed")

	// ErrInvalidFrame is returned for non-positive dimensions or a texture
	// reference that does not name a usable texture.
	ErrInvalidFrame = errors.New("processor: invalid frame")

	// ErrNoFrame is returned by ReadOutput before any frame succeeded.
	ErrNoFrame = errors.New("processor: no processed frame")

	// ErrResourceExhausted is returned when a frame needs buffers or
	// workgroups beyond the device limits.
	ErrResourceExhausted = errors.New("processor: resource exhaustion")
)

// ErrorKind classifies a failed frame.
type ErrorKind int

// Error kinds.
const (
	KindNone ErrorKind = iota
	KindInitialization
	KindInvalidState
	KindDispatch
	KindInvalidArgument
)

// String returns the kind's name as reported to the host.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return ""
	case KindInitialization:
		return "initialization"
	case KindInvalidState:
		return "invalid-state"
	case KindDispatch:
		return "dispatch"
	case KindInvalidArgument:
		return "invalid-argument"
	default:
		return "unknown"
	}
}

package processor

import "time"

// ProcessedFrame is the outcome of one ProcessFrame call.
//
// A successful frame has Processed set, an empty Error and the echoed
// dimensions. A failed frame has a non-empty Error and zero dimensions.
type ProcessedFrame struct {
	Processed bool
	Width     int
	Height    int
	Error     string

	Kind     ErrorKind
	Seq      uint64 // 1-based sequence of successful frames; 0 on failure
	TraceID  string // set on success
	Duration time.Duration
}

func failedFrame(kind ErrorKind, err error, start time.Time) ProcessedFrame {
	return ProcessedFrame{
		Error:    err.Error(),
		Kind:     kind,
		Duration: time.Since(start),
	}
}

// Stats is a snapshot of processor counters.
type Stats struct {
	Frames       uint64
	Failures     uint64
	Resizes      uint64
	DeviceLosses uint64
	LastDuration time.Duration
	Width        int
	Height       int
}

package processor

import "log/slog"

// Default initial frame size.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Option configures a Processor during creation.
//
// Example:
//
//	p := processor.New(
//	    processor.WithKernel(processor.SobelKernel),
//	    processor.WithInitialSize(1280, 720),
//	)
type Option func(*options)

type options struct {
	kernel        Kernel
	width, height int
	logger        *slog.Logger
}

func defaultOptions() options {
	return options{
		kernel: LumaKernel,
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// WithKernel selects the compute kernel. An invalid kernel makes Initialize fail.
func WithKernel(k Kernel) Option {
	return func(o *options) {
		o.kernel = k
	}
}

// WithInitialSize sets the frame size buffers are allocated for at
// initialization. Non-positive values keep the default.
func WithInitialSize(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithLogger sets a logger for this processor only. Without it the package
// logger set through SetLogger is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

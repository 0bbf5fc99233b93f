// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package host

import (
	"log/slog"
	"sync"

	"github.com/gogpu/cvcore"
	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/cvcore/processor"
	"github.com/gogpu/gpucontext"
	"github.com/google/uuid"
)

// Core is the object the host page talks to. It owns one Processor and the
// device provider the host injected.
type Core struct {
	mu       sync.Mutex
	id       string
	provider gpucontext.DeviceProvider
	proc     *processor.Processor
}

// New creates an uninitialized Core for provider, which may be nil.
// Options are passed to the underlying processor.
func New(provider gpucontext.DeviceProvider, opts ...processor.Option) *Core {
	c := &Core{
		id:       uuid.New().String(),
		provider: provider,
	}
	c.proc = processor.New(opts...)
	return c
}

func (c *Core) log() *slog.Logger {
	return cvcore.Logger().With("core", c.id)
}

// ID returns the instance id used in log lines.
func (c *Core) ID() string { return c.id }

// Version returns the build version string.
func (c *Core) Version() string { return cvcore.Version }

// Provider returns the device provider currently attached.
func (c *Core) Provider() gpucontext.DeviceProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

// InitializeGraphics builds the pipeline on the injected device. It reports
// false when no usable device was supplied or the pipeline could not be built.
func (c *Core) InitializeGraphics() bool {
	c.mu.Lock()
	prov := c.provider
	c.mu.Unlock()

	if err := c.proc.Initialize(prov); err != nil {
		c.log().Warn("host: initializeGraphics failed", "err", err)
		return false
	}
	return true
}

// AttachDevice replaces the device provider and re-initializes. Hosts use
// it to recover after a device loss.
func (c *Core) AttachDevice(provider gpucontext.DeviceProvider) bool {
	c.mu.Lock()
	c.provider = provider
	c.mu.Unlock()
	return c.InitializeGraphics()
}

// ProcessFrame relays to the processor. Non-positive texture ids map to
// the invalid id.
func (c *Core) ProcessFrame(textureID int64, width, height int) processor.ProcessedFrame {
	tex := gpucore.TextureID(gpucore.InvalidID)
	if textureID > 0 {
		tex = gpucore.TextureID(textureID)
	}
	return c.proc.ProcessFrame(tex, width, height)
}

// ReadOutput returns the last processed frame as RGBA bytes.
func (c *Core) ReadOutput() ([]byte, error) { return c.proc.ReadOutput() }

// ReadOutputAsync is ReadOutput for hosts that cannot block.
func (c *Core) ReadOutputAsync(done func([]byte, error)) { c.proc.ReadOutputAsync(done) }

// Stats returns the processor counters.
func (c *Core) Stats() processor.Stats { return c.proc.Stats() }

// State returns the processor state.
func (c *Core) State() processor.State { return c.proc.State() }

// Close releases GPU objects owned by the core. The host's device is kept.
func (c *Core) Close() {
	c.proc.Close()
	c.log().Debug("host: closed")
}

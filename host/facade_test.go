// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package host

import (
	"testing"

	"github.com/gogpu/cvcore"
	"github.com/gogpu/cvcore/internal/gputest"
	"github.com/gogpu/cvcore/processor"
)

func TestCore_Version(t *testing.T) {
	c := New(nil)
	first := c.Version()
	if first != "Industrial CV POC v0.1.0" {
		t.Errorf("Version() = %q", first)
	}
	if first != cvcore.Version {
		t.Errorf("Version() = %q", first)
	}
	c.InitializeGraphics()
	for range 3 {
		if got := c.Version(); got != first {
			t.Errorf("Version() = %q on repeat call, want %q", got, first)
		}
	}
	if got := New(gputest.NewFakeProvider()).Version(); got != first {
		t.Errorf("Version() on second instance = %q, want %q", got, first)
	}
	if c.ID() == "" {
		t.Error("ID() is empty")
	}
}

func TestCore_ProcessFrameBeforeInit(t *testing.T) {
	c := New(gputest.NewFakeProvider())
	r := c.ProcessFrame(5, 640, 480)
	if r.Processed {
		t.Fatal("processed = true before initializeGraphics")
	}
	if r.Error == "" {
		t.Error("error is empty")
	}
	if r.Width != 0 || r.Height != 0 {
		t.Errorf("dims = %dx%d, want 0x0", r.Width, r.Height)
	}
}

func TestCore_ProcessFrameAfterFailedInit(t *testing.T) {
	prov := gputest.NewFakeProvider()
	prov.GPU.FailPipeline = true
	c := New(prov)
	if c.InitializeGraphics() {
		t.Fatal("InitializeGraphics() = true with failing pipeline")
	}
	gpu := prov.GPU
	tex := gpu.AddTexture(64, 64, nil)
	copies, submits, dispatches, writes := gpu.Copies, gpu.Submits, len(gpu.Dispatches), gpu.BufferWrites

	r := c.ProcessFrame(int64(tex), 64, 64)
	if r.Processed || r.Kind != processor.KindInvalidState {
		t.Errorf("ProcessFrame() = %+v, want not processed with %v", r, processor.KindInvalidState)
	}
	if gpu.Copies != copies || gpu.Submits != submits || len(gpu.Dispatches) != dispatches || gpu.BufferWrites != writes {
		t.Errorf("GPU work after failed init: copies %d->%d submits %d->%d dispatches %d->%d writes %d->%d",
			copies, gpu.Copies, submits, gpu.Submits, dispatches, len(gpu.Dispatches), writes, gpu.BufferWrites)
	}
	if n := gpu.LiveResources(); n != 0 {
		t.Errorf("LiveResources() = %d after failed init, want 0", n)
	}
}

func TestCore_InitializeGraphics(t *testing.T) {
	tests := []struct {
		name string
		prov func() *gputest.FakeProvider
		want bool
	}{
		{"valid device", gputest.NewFakeProvider, true},
		{"nil device", func() *gputest.FakeProvider {
			return &gputest.FakeProvider{GPU: gputest.NewFakeAdapter(), NilDev: true}
		}, false},
		{"pipeline failure", func() *gputest.FakeProvider {
			p := gputest.NewFakeProvider()
			p.GPU.FailPipeline = true
			return p
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.prov())
			if got := c.InitializeGraphics(); got != tt.want {
				t.Errorf("InitializeGraphics() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("no provider", func(t *testing.T) {
		c := New(nil)
		if c.InitializeGraphics() {
			t.Error("InitializeGraphics() = true without a device")
		}
		if c.State() != processor.Failed {
			t.Errorf("State() = %v, want Failed", c.State())
		}
	})
}

func TestCore_EndToEnd(t *testing.T) {
	prov := gputest.NewFakeProvider()
	tex := prov.GPU.AddTexture(640, 480, nil)
	c := New(prov)
	defer c.Close()

	if r := c.ProcessFrame(int64(tex), 640, 480); r.Processed {
		t.Fatalf("frame before init = %+v", r)
	}
	if !c.InitializeGraphics() {
		t.Fatal("InitializeGraphics() = false")
	}

	r := c.ProcessFrame(int64(tex), 640, 480)
	if !r.Processed || r.Width != 640 || r.Height != 480 || r.Error != "" {
		t.Fatalf("ProcessFrame() = %+v", r)
	}

	out, err := c.ReadOutput()
	if err != nil {
		t.Fatalf("ReadOutput() error = %v", err)
	}
	if len(out) != 640*480*4 {
		t.Errorf("len(ReadOutput()) = %d", len(out))
	}
	if s := c.Stats(); s.Frames != 1 {
		t.Errorf("Stats().Frames = %d, want 1", s.Frames)
	}
}

func TestCore_NegativeTextureID(t *testing.T) {
	c := New(gputest.NewFakeProvider())
	if !c.InitializeGraphics() {
		t.Fatal("InitializeGraphics() = false")
	}
	r := c.ProcessFrame(-3, 640, 480)
	if r.Processed || r.Kind != processor.KindInvalidArgument {
		t.Errorf("ProcessFrame(-3) = %+v", r)
	}
}

func TestCore_AttachDeviceRecovers(t *testing.T) {
	first := gputest.NewFakeProvider()
	c := New(first)
	if !c.InitializeGraphics() {
		t.Fatal("InitializeGraphics() = false")
	}
	tex := first.GPU.AddTexture(64, 64, nil)
	first.GPU.Lose()

	if r := c.ProcessFrame(int64(tex), 64, 64); r.Processed {
		t.Fatal("frame on lost device processed")
	}
	if c.State() != processor.Failed {
		t.Fatalf("State() = %v, want Failed", c.State())
	}

	second := gputest.NewFakeProvider()
	if !c.AttachDevice(second) {
		t.Fatal("AttachDevice() = false")
	}
	if c.Provider() != second {
		t.Error("Provider() not replaced")
	}
	tex2 := second.GPU.AddTexture(64, 64, nil)
	if r := c.ProcessFrame(int64(tex2), 64, 64); !r.Processed {
		t.Errorf("frame after AttachDevice = %+v", r)
	}
}

func TestCore_Options(t *testing.T) {
	c := New(gputest.NewFakeProvider(), processor.WithKernel(processor.SobelKernel))
	if !c.InitializeGraphics() {
		t.Fatal("InitializeGraphics() = false")
	}
	c.Close()
	if c.State() != processor.Uninitialized {
		t.Errorf("State() after Close = %v", c.State())
	}
}

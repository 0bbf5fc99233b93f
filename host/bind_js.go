// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build js && wasm

package host

import (
	"fmt"
	"math"
	"sync"
	"syscall/js"

	"github.com/gogpu/cvcore"
	"github.com/gogpu/cvcore/device"
	"github.com/gogpu/cvcore/gpucore"
	"github.com/gogpu/cvcore/processor"
)

// ClassName is the global constructor installed by Register.
const ClassName = "IndustrialCVCore"

// Register installs the IndustrialCVCore constructor on global. The
// returned function removes it and releases the callbacks.
func Register(global js.Value, opts ...processor.Option) (unregister func()) {
	var statics []js.Func
	ctor := js.FuncOf(func(this js.Value, args []js.Value) any {
		var dev js.Value
		if len(args) > 0 {
			dev = args[0]
		}
		newInstance(this, dev, opts)
		return nil
	})
	class := ctor.Value

	static := func(name string, fn func(args []js.Value) any) {
		f := js.FuncOf(func(_ js.Value, args []js.Value) any { return guard(name, func() any { return fn(args) }) })
		statics = append(statics, f)
		class.Set(name, f)
	}
	static("isAvailable", func([]js.Value) any { return device.IsAvailable() })
	static("describeAdapter", func(args []js.Value) any {
		if len(args) == 0 {
			return device.NoAdapterDescription
		}
		return device.DescribeAdapter(device.NewAdapter(args[0]))
	})
	class.Set("version", cvcore.Version)

	global.Set(ClassName, class)
	cvcore.Logger().Info("host: registered", "class", ClassName)

	return func() {
		global.Delete(ClassName)
		for _, f := range statics {
			f.Release()
		}
		ctor.Release()
	}
}

// instance binds one JS object to a Core.
type instance struct {
	mu       sync.Mutex
	core     *Core
	provider *device.JSProvider
	funcs    []js.Func
}

func newInstance(this, dev js.Value, opts []processor.Option) {
	inst := &instance{}
	inst.provider = device.NewJSProvider(dev)
	if inst.provider != nil {
		inst.core = New(inst.provider, opts...)
	} else {
		inst.core = New(nil, opts...)
	}

	method := func(name string, fn func(args []js.Value) any) {
		f := js.FuncOf(func(_ js.Value, args []js.Value) any { return guard(name, func() any { return fn(args) }) })
		inst.funcs = append(inst.funcs, f)
		this.Set(name, f)
	}

	method("initializeGraphics", func([]js.Value) any { return inst.core.InitializeGraphics() })
	method("initializeWebGPU", func([]js.Value) any { return inst.core.InitializeGraphics() })
	method("attachDevice", func(args []js.Value) any { return inst.attach(args) })
	method("getVersion", func([]js.Value) any { return inst.core.Version() })
	method("processFrame", func(args []js.Value) any {
		r := inst.core.ProcessFrame(intArg(args, 0), int(intArg(args, 1)), int(intArg(args, 2)))
		return frameToJS(r)
	})
	method("registerTexture", func(args []js.Value) any {
		p := inst.currentProvider()
		if p == nil || len(args) == 0 {
			return 0
		}
		return float64(p.RegisterTexture(args[0]))
	})
	method("releaseTexture", func(args []js.Value) any {
		if p := inst.currentProvider(); p != nil {
			if id := intArg(args, 0); id > 0 {
				p.ReleaseTexture(gpucore.TextureID(id))
			}
		}
		return nil
	})
	method("readOutput", func([]js.Value) any { return inst.readOutput() })
	method("stats", func([]js.Value) any { return statsToJS(inst.core.Stats(), inst.core.State()) })
	method("destroy", func([]js.Value) any {
		inst.destroy()
		return nil
	})
}

func (inst *instance) currentProvider() *device.JSProvider {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.provider
}

func (inst *instance) attach(args []js.Value) bool {
	var dev js.Value
	if len(args) > 0 {
		dev = args[0]
	}
	p := device.NewJSProvider(dev)

	inst.mu.Lock()
	old := inst.provider
	inst.provider = p
	inst.mu.Unlock()

	// The processor releases its objects on re-initialize; drop the old
	// adapter's remaining handles afterwards.
	var ok bool
	if p == nil {
		ok = inst.core.AttachDevice(nil)
	} else {
		ok = inst.core.AttachDevice(p)
	}
	if old != nil {
		old.Release()
	}
	return ok
}

func (inst *instance) readOutput() js.Value {
	promise := js.Global().Get("Promise")
	executor := js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		inst.core.ReadOutputAsync(func(b []byte, err error) {
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			arr := js.Global().Get("Uint8Array").New(len(b))
			js.CopyBytesToJS(arr, b)
			resolve.Invoke(arr)
		})
		return nil
	})
	defer executor.Release()
	return promise.New(executor)
}

func (inst *instance) destroy() {
	inst.core.Close()
	inst.mu.Lock()
	p := inst.provider
	inst.provider = nil
	inst.mu.Unlock()
	if p != nil {
		p.Release()
	}
	// inst.funcs stay alive: the JS object may still call them, and calling
	// a released js.Func panics.
}

// guard keeps a Go panic from crossing into JS.
func guard(name string, fn func() any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			cvcore.Logger().Error("host: recovered panic", "method", name, "panic", fmt.Sprint(r))
			out = map[string]any{"error": fmt.Sprintf("%s: internal error: %v", name, r)}
		}
	}()
	return fn()
}

func intArg(args []js.Value, i int) int64 {
	if i >= len(args) || args[i].Type() != js.TypeNumber {
		return -1
	}
	f := args[i].Float()
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return -1
	}
	return int64(f)
}

func frameToJS(r processor.ProcessedFrame) map[string]any {
	return map[string]any{
		"processed":  r.Processed,
		"width":      r.Width,
		"height":     r.Height,
		"error":      r.Error,
		"kind":       r.Kind.String(),
		"seq":        float64(r.Seq),
		"traceId":    r.TraceID,
		"durationMs": float64(r.Duration.Microseconds()) / 1000,
	}
}

func statsToJS(s processor.Stats, st processor.State) map[string]any {
	return map[string]any{
		"state":          st.String(),
		"frames":         float64(s.Frames),
		"failures":       float64(s.Failures),
		"resizes":        float64(s.Resizes),
		"deviceLosses":   float64(s.DeviceLosses),
		"lastDurationMs": float64(s.LastDuration.Microseconds()) / 1000,
		"width":          s.Width,
		"height":         s.Height,
	}
}

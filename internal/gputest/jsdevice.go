//go:build js && wasm

package gputest

import (
	"sync"
	"syscall/js"
	"testing"
	"time"
)

// JSDevice is a scripted GPUDevice for browser tests. Buffers hold real
// bytes so writeBuffer and copyBufferToBuffer can be read back through
// mapAsync. Commands are counted, not executed.
type JSDevice struct {
	// Value is the JS object to hand to the code under test.
	Value js.Value

	mu         sync.Mutex
	submits    int
	dispatches int
	copies     int
	destroyed  int
	listeners  []js.Value
	resolve    js.Value
	funcs      []js.Func
	lostFired  bool
	objectCtor js.Value
}

// NewJSDevice builds a mock device with WebGPU default limits and a lost
// promise that resolves when Lose is called.
func NewJSDevice() *JSDevice {
	d := &JSDevice{objectCtor: js.Global().Get("Object")}
	dev := d.object()

	limits := d.object()
	limits.Set("maxStorageBufferBindingSize", 128<<20)
	limits.Set("maxComputeWorkgroupSizeX", 256)
	limits.Set("maxComputeWorkgroupSizeY", 256)
	limits.Set("maxComputeWorkgroupSizeZ", 64)
	limits.Set("maxComputeWorkgroupsPerDimension", 65535)
	dev.Set("limits", limits)

	info := d.object()
	info.Set("vendor", "mock")
	info.Set("architecture", "test")
	info.Set("description", "Mock GPU")
	dev.Set("adapterInfo", info)

	executor := js.FuncOf(func(_ js.Value, args []js.Value) any {
		d.resolve = args[0]
		return nil
	})
	dev.Set("lost", js.Global().Get("Promise").New(executor))
	executor.Release()

	queue := d.object()
	d.method(queue, "submit", func([]js.Value) any {
		d.mu.Lock()
		d.submits++
		d.mu.Unlock()
		return nil
	})
	d.method(queue, "writeBuffer", func(args []js.Value) any {
		args[0].Get("_data").Call("set", args[2], args[1])
		return nil
	})
	d.method(queue, "writeTexture", func([]js.Value) any { return nil })
	dev.Set("queue", queue)

	d.method(dev, "createBuffer", func(args []js.Value) any {
		return d.buffer(args[0].Get("size").Int())
	})
	d.method(dev, "createTexture", func(args []js.Value) any {
		size := args[0].Get("size")
		return d.Texture(size.Index(0).Int(), size.Index(1).Int())
	})
	for _, name := range []string{
		"createShaderModule", "createBindGroupLayout", "createPipelineLayout",
		"createComputePipeline", "createBindGroup",
	} {
		d.method(dev, name, func([]js.Value) any { return d.object() })
	}
	d.method(dev, "createCommandEncoder", func([]js.Value) any { return d.encoder() })
	d.method(dev, "addEventListener", func(args []js.Value) any {
		if args[0].String() == "uncapturederror" {
			d.mu.Lock()
			d.listeners = append(d.listeners, args[1])
			d.mu.Unlock()
		}
		return nil
	})
	d.method(dev, "removeEventListener", func(args []js.Value) any {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, l := range d.listeners {
			if l.Equal(args[1]) {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				break
			}
		}
		return nil
	})

	d.Value = dev
	return d
}

func (d *JSDevice) object() js.Value { return d.objectCtor.New() }

func (d *JSDevice) method(obj js.Value, name string, fn func(args []js.Value) any) {
	f := js.FuncOf(func(_ js.Value, args []js.Value) any { return fn(args) })
	d.mu.Lock()
	d.funcs = append(d.funcs, f)
	d.mu.Unlock()
	obj.Set(name, f)
}

func (d *JSDevice) buffer(size int) js.Value {
	buf := d.object()
	data := js.Global().Get("Uint8Array").New(size)
	buf.Set("size", size)
	buf.Set("_data", data)
	d.method(buf, "mapAsync", func([]js.Value) any {
		return js.Global().Get("Promise").Call("resolve")
	})
	d.method(buf, "getMappedRange", func([]js.Value) any { return data.Get("buffer") })
	d.method(buf, "unmap", func([]js.Value) any { return nil })
	d.method(buf, "destroy", func([]js.Value) any {
		d.mu.Lock()
		d.destroyed++
		d.mu.Unlock()
		return nil
	})
	return buf
}

func (d *JSDevice) encoder() js.Value {
	enc := d.object()
	d.method(enc, "copyTextureToBuffer", func([]js.Value) any {
		d.mu.Lock()
		d.copies++
		d.mu.Unlock()
		return nil
	})
	d.method(enc, "copyBufferToBuffer", func(args []js.Value) any {
		src, srcOff, dst, dstOff, size := args[0], args[1].Int(), args[2], args[3].Int(), args[4].Int()
		dst.Get("_data").Call("set", src.Get("_data").Call("subarray", srcOff, srcOff+size), dstOff)
		return nil
	})
	d.method(enc, "beginComputePass", func([]js.Value) any {
		pass := d.object()
		d.method(pass, "setPipeline", func([]js.Value) any { return nil })
		d.method(pass, "setBindGroup", func([]js.Value) any { return nil })
		d.method(pass, "dispatchWorkgroups", func([]js.Value) any {
			d.mu.Lock()
			d.dispatches++
			d.mu.Unlock()
			return nil
		})
		d.method(pass, "end", func([]js.Value) any { return nil })
		return pass
	})
	d.method(enc, "finish", func([]js.Value) any { return d.object() })
	return enc
}

// Texture returns a GPUTexture-like object of the given size.
func (d *JSDevice) Texture(width, height int) js.Value {
	tex := d.object()
	tex.Set("width", width)
	tex.Set("height", height)
	d.method(tex, "destroy", func([]js.Value) any { return nil })
	return tex
}

// Lose resolves the device's lost promise. Handlers run on a later
// event-loop turn.
func (d *JSDevice) Lose(message string) {
	d.mu.Lock()
	if d.lostFired {
		d.mu.Unlock()
		return
	}
	d.lostFired = true
	resolve := d.resolve
	d.mu.Unlock()

	info := d.object()
	info.Set("reason", "destroyed")
	info.Set("message", message)
	resolve.Invoke(info)
}

// FireError dispatches an uncapturederror event to every listener.
func (d *JSDevice) FireError(message string) {
	d.mu.Lock()
	listeners := append([]js.Value(nil), d.listeners...)
	d.mu.Unlock()

	gpuErr := d.object()
	gpuErr.Set("message", message)
	event := d.object()
	event.Set("type", "uncapturederror")
	event.Set("error", gpuErr)
	for _, l := range listeners {
		l.Invoke(event)
	}
}

// Listeners returns how many uncapturederror listeners are registered.
func (d *JSDevice) Listeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// Submits returns the number of queue.submit calls.
func (d *JSDevice) Submits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits
}

// Dispatches returns the number of dispatchWorkgroups calls.
func (d *JSDevice) Dispatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatches
}

// Copies returns the number of copyTextureToBuffer calls.
func (d *JSDevice) Copies() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.copies
}

// Destroyed returns the number of buffer destroy calls.
func (d *JSDevice) Destroyed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// Release frees the callbacks backing the mock. The device must not be
// used afterwards.
func (d *JSDevice) Release() {
	d.mu.Lock()
	funcs := d.funcs
	d.funcs = nil
	d.mu.Unlock()
	for _, f := range funcs {
		f.Release()
	}
}

// Await yields to the event loop until cond holds, failing the test after
// a second.
func Await(t testing.TB, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

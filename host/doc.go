// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package host is the binding facade between a host application and the
// frame processor.
//
// [Core] is a thin relay: it owns one processor.Processor and the device
// provider the host injected, converts host-side values (integer texture
// ids, optional devices) and reports every failure as a value.
//
// In the browser, [Register] installs the IndustrialCVCore class on the
// global object:
//
//	const core = new IndustrialCVCore(device);
//	if (core.initializeGraphics()) {
//	    const id = core.registerTexture(videoTexture);
//	    const r = core.processFrame(id, 640, 480);
//	    if (!r.processed) console.warn(r.error);
//	}
package host

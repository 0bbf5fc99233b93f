//go:build js && wasm

// Command cvcore-wasm exposes the IndustrialCVCore class to the browser.
package main

import (
	"log/slog"
	"os"
	"syscall/js"

	"github.com/gogpu/cvcore"
	"github.com/gogpu/cvcore/host"
)

func main() {
	cvcore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	host.Register(js.Global())
	cvcore.Logger().Info("cvcore-wasm: ready", "version", cvcore.Version)

	select {}
}

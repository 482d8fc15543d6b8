// Command rtcd runs an rtkit component runtime described by a configuration
// file: execution contexts, components and connectors, with the admin API,
// the metrics endpoint and an optional NATS connection.
package main

import (
	"fmt"
	"os"
	"runtime"
)

// Build information, set with -ldflags.
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "rtcd"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

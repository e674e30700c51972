// main.go: goextend command entry point
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Command goextend inspects and manages plugin and theme activation state.
//
// Usage:
//
//	goextend plugins sync
//	goextend plugins activate acme/blog
//	goextend themes activate dark
//	goextend resolve 'Acme\Blog\Models\Post'
//	goextend boot --health-addr :50051
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCommand()
	err := root.ExecuteContext(ctx)
	if closeErr := a.teardown(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

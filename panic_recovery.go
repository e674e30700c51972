// panic_recovery.go: panic recovery utilities with stack trace support
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"fmt"
	"runtime"
)

// stackBufferSize bounds the captured stack trace.
const stackBufferSize = 64 << 10

// PanicError carries a recovered panic value and the stack where it happened.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements error.
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// RecoveryHandler defines the signature for panic recovery handlers.
type RecoveryHandler func(recovered any, stack []byte)

func captureStack() []byte {
	buf := make([]byte, stackBufferSize)
	n := runtime.Stack(buf, false)
	return buf[:n]
}

// callRecovering runs fn and converts a panic into a *PanicError.
//
// Example usage:
//
//	err := callRecovering(func() error {
//	    return provider.Boot(kernel)
//	})
func callRecovering(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: captureStack()}
		}
	}()
	return fn()
}

// withStackRecover returns a recovery function that logs the panic with its
// stack trace. The returned function must be deferred.
//
//	go func() {
//	    defer withStackRecover(logger)()
//	    // potentially panicking code
//	}()
func withStackRecover(logger Logger) func() {
	return func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered in goroutine",
				"panic", r,
				"stack", string(captureStack()))
		}
	}
}

// withCustomRecoveryHandler returns a recovery function that hands the panic
// to handler.
func withCustomRecoveryHandler(handler RecoveryHandler) func() {
	return func() {
		if r := recover(); r != nil {
			handler(r, captureStack())
		}
	}
}

// SafeGo executes fn in a new goroutine with panic recovery and logging.
func SafeGo(logger Logger, fn func()) {
	go func() {
		defer withStackRecover(logger)()
		fn()
	}()
}

// SafeGoWithHandler executes fn in a new goroutine with custom panic recovery.
func SafeGoWithHandler(handler RecoveryHandler, fn func()) {
	go func() {
		defer withCustomRecoveryHandler(handler)()
		fn()
	}()
}

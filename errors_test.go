// errors_test.go: error code matching and store sentinel tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasErrorCode(t *testing.T) {
	t.Run("DirectAndWrapped", func(t *testing.T) {
		err := NewUnknownModuleError(KindPlugin.String(), "ghost/plugin")
		assert.True(t, HasErrorCode(err, ErrCodeUnknownModule))
		assert.False(t, HasErrorCode(err, ErrCodeResolutionMiss))

		wrapped := fmt.Errorf("cli: %w", err)
		assert.True(t, HasErrorCode(wrapped, ErrCodeUnknownModule))
	})

	t.Run("PlainErrors", func(t *testing.T) {
		assert.False(t, HasErrorCode(errors.New("plain"), ErrCodeUnknownModule))
		assert.False(t, HasErrorCode(nil, ErrCodeUnknownModule))
	})

	t.Run("CauseIsKept", func(t *testing.T) {
		cause := errors.New("disk full")
		err := NewActivationFailedError(KindTheme.String(), "dark-mode", cause)
		assert.ErrorIs(t, err, cause)
		assert.True(t, err.IsRetryable())
	})

	t.Run("NilCause", func(t *testing.T) {
		err := NewBootManifestError("acme/gone", nil)
		require.NotNil(t, err)
		assert.Equal(t, goerrors.ErrorCode(ErrCodeBootManifest), err.Code)
	})
}

func TestErrorContext(t *testing.T) {
	err := NewResolutionMissError(`Vendor\C\X`, "/p/c/X.go")
	assert.Equal(t, `Vendor\C\X`, err.Context["symbol"])
	assert.Equal(t, "/p/c/X.go", err.Context["candidate"])
	assert.True(t, IsResolutionMiss(err))

	dup := NewDuplicateModuleError("acme/blog", "/b", "/a")
	assert.Equal(t, "/a", dup.Context["first_path"])
}

func TestIsBackendUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Sentinel", err: ErrBackendUnavailable, expected: true},
		{name: "WrappedSentinel", err: fmt.Errorf("sqlite: %w", ErrBackendUnavailable), expected: true},
		{name: "Structured", err: NewBackendUnavailableError(nil), expected: true},
		{name: "RecordNotFound", err: fmt.Errorf("plugin: %w", ErrRecordNotFound), expected: false},
		{name: "Nil", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBackendUnavailable(tt.err))
		})
	}
}

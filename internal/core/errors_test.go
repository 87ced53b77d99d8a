// internal/core/errors_test.go
package core

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrInvalidInput, ErrInvalidInput) {
		t.Error("same error should match")
	}
	if errors.Is(ErrInvalidInput, ErrInvalidArgument) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrStorageFailed, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrStorageFailed.Code {
		t.Error("code not preserved")
	}
	if !errors.Is(wrapped, ErrStorageFailed) {
		t.Error("wrapped error should match its base by code")
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(ErrInvalidInput, "record %d", 3)
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("Errorf should keep the base code")
	}
	if err.Error() != "[INVALID_INPUT] invalid trade record: record 3" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFound("content piece", "cp-1")
	if err.Error() != "content piece not found: cp-1" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound should match")
	}

	wrapped := fmt.Errorf("request failed: %w", err)
	if !IsNotFound(wrapped) {
		t.Fatalf("IsNotFound should match wrapped errors")
	}

	if IsNotFound(errors.New("something else")) {
		t.Fatalf("IsNotFound should not match arbitrary errors")
	}
}

func TestStateError(t *testing.T) {
	err := NewStateError("content piece", "cp-1", "rejected", "approved_for_posting")
	if err.Error() != "content piece cp-1 is rejected, want approved_for_posting" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsStateError(err) {
		t.Fatalf("IsStateError should match")
	}
	if IsStateError(NewNotFound("agent", "a-1")) {
		t.Fatalf("IsStateError should not match NotFoundError")
	}
	if IsNotFound(err) {
		t.Fatalf("IsNotFound should not match StateError")
	}
}

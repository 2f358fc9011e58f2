package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"protocol", fmt.Errorf("opcode 0xee: %w", ErrProtocolViolation), false},
		{"allocation", fmt.Errorf("failed to create texture: %w", ErrBackendFailure), false},
		{"device lost", fmt.Errorf("failed to submit frame: %w", ErrBackendLost), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Fatalf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestBackendLostIsBackendFailure(t *testing.T) {
	err := fmt.Errorf("fence: %w", ErrBackendLost)
	if !errors.Is(err, ErrBackendFailure) {
		t.Fatal("lost device must classify as a backend failure")
	}
}

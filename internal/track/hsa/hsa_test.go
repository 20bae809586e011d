package hsa

import (
	"errors"
	"fmt"
	"testing"
)

type versionOnly struct {
	Runtime
	v string
}

func (r versionOnly) Version() string { return r.v }

// TestCheckVersion verifies the runtime version gate.
func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"v1.1.0", true},
		{"1.4.2", true},
		{"v2.0.0-rc1", true},
		{"v1.0.9", false},
		{"v0.9", false},
		{"banana", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckVersion(versionOnly{v: tt.version})
			if tt.ok && err != nil {
				t.Errorf("CheckVersion(%q) = %v, want nil", tt.version, err)
			}
			if !tt.ok && !errors.Is(err, ErrUnsupportedRuntime) {
				t.Errorf("CheckVersion(%q) = %v, want ErrUnsupportedRuntime", tt.version, err)
			}
		})
	}
}

// TestCondition_Satisfied verifies threshold comparisons.
func TestCondition_Satisfied(t *testing.T) {
	if !CondLt.Satisfied(0, 1) || CondLt.Satisfied(1, 1) {
		t.Error("CondLt mismatch")
	}
	if !CondEq.Satisfied(3, 3) || CondEq.Satisfied(2, 3) {
		t.Error("CondEq mismatch")
	}
	if !CondNe.Satisfied(2, 3) || CondNe.Satisfied(3, 3) {
		t.Error("CondNe mismatch")
	}
	if !CondGte.Satisfied(3, 3) || CondGte.Satisfied(2, 3) {
		t.Error("CondGte mismatch")
	}
	if Condition(42).Satisfied(0, 0) {
		t.Error("unknown condition should never be satisfied")
	}
}

// TestStatusError verifies formatting and status extraction through wrapping.
func TestStatusError(t *testing.T) {
	err := NewStatusError("hsa_signal_create", StatusOutOfResources)
	want := "hsa_signal_create: HSA_STATUS_ERROR_OUT_OF_RESOURCES"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("alloc: %w", err)
	if got := StatusOf(wrapped); got != StatusOutOfResources {
		t.Errorf("StatusOf(wrapped) = %v, want %v", got, StatusOutOfResources)
	}
	if got := StatusOf(nil); got != StatusSuccess {
		t.Errorf("StatusOf(nil) = %v, want success", got)
	}
	if got := StatusOf(errors.New("x")); got != StatusFailure {
		t.Errorf("StatusOf(plain) = %v, want generic error", got)
	}
}

// TestStatus_String verifies runtime status names.
func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusSuccess, "HSA_STATUS_SUCCESS"},
		{StatusFailure, "HSA_STATUS_ERROR"},
		{StatusInvalidArgument, "HSA_STATUS_ERROR_INVALID_ARGUMENT"},
		{StatusInvalidSignal, "HSA_STATUS_ERROR_INVALID_SIGNAL"},
		{StatusInvalidAgent, "HSA_STATUS_ERROR_INVALID_AGENT"},
		{StatusOutOfResources, "HSA_STATUS_ERROR_OUT_OF_RESOURCES"},
		{Status(99), "HSA_STATUS(99)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}

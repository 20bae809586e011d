package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// TestParse verifies each variable and the defaults.
func TestParse(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Config
	}{
		{
			name: "empty",
			env:  map[string]string{},
			want: Config{},
		},
		{
			name: "all",
			env: map[string]string{
				EnvOrdering:   "true",
				EnvTrace:      "1",
				EnvSampleRate: "10",
				EnvStore:      "/tmp/at",
			},
			want: Config{Ordering: true, Trace: true, SampleRate: 10, StoreDir: "/tmp/at"},
		},
		{
			name: "ordering_off",
			env:  map[string]string{EnvOrdering: "false"},
			want: Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parse(env(tt.env))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestParse_Malformed verifies every bad variable is reported.
func TestParse_Malformed(t *testing.T) {
	_, err := parse(env(map[string]string{
		EnvOrdering:   "sometimes",
		EnvSampleRate: "-1",
	}))
	if err == nil {
		t.Fatal("parse accepted malformed values")
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("got %d errors, want 2: %v", n, err)
	}
}

// TestOptions verifies the tracker options mapping.
func TestOptions(t *testing.T) {
	opts := Config{Ordering: true, SampleRate: 4, StoreDir: "x"}.Options()
	if !opts.Ordering || opts.SampleRate != 4 {
		t.Errorf("Options() = %+v", opts)
	}
}

// TestApplyTrace_Off verifies no flag change without Trace.
func TestApplyTrace_Off(t *testing.T) {
	if err := (Config{}).ApplyTrace(); err != nil {
		t.Errorf("ApplyTrace: %v", err)
	}
}

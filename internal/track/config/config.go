// Package config reads tracker settings from the environment.
//
// Variables:
//
//	ASYNCTRACK_ORDERING     deliver handlers in admission order (bool)
//	ASYNCTRACK_TRACE        verbose admission/completion trace (bool)
//	ASYNCTRACK_SAMPLE_RATE  persist one of every N activities (uint)
//	ASYNCTRACK_STORE        pebble directory for delivered activities
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"

	"github.com/kolkov/asynctrack/internal/track/tracker"
)

// Environment variable names.
const (
	EnvOrdering   = "ASYNCTRACK_ORDERING"
	EnvTrace      = "ASYNCTRACK_TRACE"
	EnvSampleRate = "ASYNCTRACK_SAMPLE_RATE"
	EnvStore      = "ASYNCTRACK_STORE"
)

// traceVerbosity is the glog level of per-entry trace output.
const traceVerbosity = "2"

// Config is the environment-derived configuration.
type Config struct {
	Ordering   bool
	Trace      bool
	SampleRate uint64
	StoreDir   string
}

// FromEnv reads Config from the process environment. Unset variables keep
// their zero value; malformed ones are reported together.
func FromEnv() (Config, error) {
	return parse(os.LookupEnv)
}

func parse(lookup func(string) (string, bool)) (Config, error) {
	var (
		cfg Config
		err error
	)
	if v, ok := lookup(EnvOrdering); ok {
		b, perr := strconv.ParseBool(v)
		err = multierr.Append(err, wrap(EnvOrdering, perr))
		cfg.Ordering = b
	}
	if v, ok := lookup(EnvTrace); ok {
		b, perr := strconv.ParseBool(v)
		err = multierr.Append(err, wrap(EnvTrace, perr))
		cfg.Trace = b
	}
	if v, ok := lookup(EnvSampleRate); ok {
		n, perr := strconv.ParseUint(v, 10, 64)
		err = multierr.Append(err, wrap(EnvSampleRate, perr))
		cfg.SampleRate = n
	}
	if v, ok := lookup(EnvStore); ok {
		cfg.StoreDir = v
	}
	return cfg, err
}

func wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// Options returns tracker options for cfg. Sink and Observer are left for
// the caller to attach.
func (c Config) Options() tracker.Options {
	return tracker.Options{
		Ordering:   c.Ordering,
		SampleRate: c.SampleRate,
	}
}

// ApplyTrace raises glog verbosity so per-entry trace lines are logged.
// It is a no-op unless Trace is set.
func (c Config) ApplyTrace() error {
	if !c.Trace {
		return nil
	}
	return flag.Set("v", traceVerbosity)
}

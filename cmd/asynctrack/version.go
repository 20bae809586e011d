package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/kolkov/asynctrack/internal/track/hsa"
)

type versionCmd struct {
	runtime string
}

func (*versionCmd) Name() string     { return "version" }
func (*versionCmd) Usage() string    { return "version [-runtime VERSION]\n" }
func (*versionCmd) Synopsis() string { return "print the tool and minimum runtime versions" }

func (cmd *versionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.runtime, "runtime", "", "also check whether this runtime version is supported")
}

func (cmd *versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := cmd.run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "asynctrack: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (cmd *versionCmd) run(w io.Writer) error {
	fmt.Fprintf(w, "asynctrack version %s (runtime >= %s)\n", version, hsa.MinVersion)
	if cmd.runtime == "" {
		return nil
	}
	if err := hsa.Supported(cmd.runtime); err != nil {
		return err
	}
	fmt.Fprintf(w, "runtime %s: supported\n", hsa.CanonicalVersion(cmd.runtime))
	return nil
}

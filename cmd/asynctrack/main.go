// Package main implements the asynctrack CLI tool.
//
// The asynctrack tool exercises the completion tracker against the
// in-process simulated accelerator runtime and inspects persisted
// activity stores:
//
//	asynctrack simulate -n 10000 -producers 8 -ordered -store /tmp/at
//	asynctrack report -store /tmp/at
//	asynctrack version
//
// Logging uses glog; pass -v=2 for a per-entry trace.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/google/subcommands"
)

const version = "0.1.0"

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(newSimulateCmd(), "")
	subcommands.Register(newReportCmd(), "")
	subcommands.Register(&versionCmd{}, "")

	flag.Parse()
	defer glog.Flush()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

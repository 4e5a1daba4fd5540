// Package base carries the plumbing shared by all CLI commands.
package base

import (
	"flag"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command is embedded by every subcommand and provides the UI and logger.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui
}

// FlagSet returns a flag set wired for CLI use: parse errors are reported
// through the UI rather than the default stderr printer.
func (c *Command) FlagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.SetOutput(io.Discard)
	return f
}

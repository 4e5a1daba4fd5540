// Package version implements `umbpress version`.
package version

import (
	"github.com/umbraco-forge/umbpress/internal/cmd/base"
	"github.com/umbraco-forge/umbpress/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return "Usage: umbpress version"
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.Version)
	return 0
}

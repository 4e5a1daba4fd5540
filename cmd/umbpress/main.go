package main

import (
	"os"

	"github.com/umbraco-forge/umbpress/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}

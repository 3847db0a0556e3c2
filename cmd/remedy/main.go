package main

import (
	"github.com/lveselov/remedy/internal/cli"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cli.SetVersion(Version)
	cli.Execute()
}

package main

import (
	"os"

	"github.com/cutlist/cutlist-agent/internal/cli"
)

var Version = "0.1.0"

func main() {
	os.Exit(cli.Execute(Version))
}

package main

import (
	"fmt"
	"os"

	"tdcch/internal/cliapp"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cliapp.SetVersion(version, commit, date)
	if err := cliapp.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

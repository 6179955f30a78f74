package main

import (
	"os"

	"github.com/quantum-exegol/quantum-exegol/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}

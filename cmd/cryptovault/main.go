// Command cryptovault stores and reads encrypted values from the command line.
package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/roach88/cryptovault/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}

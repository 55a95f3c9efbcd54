package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/Kerhoff/toyrent/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/wonny/xcelerator/cmd/quant/commands"
)

// main is the entry point for the Xcelerator CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

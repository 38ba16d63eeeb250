// Package main provides the entry point for the h5runner CLI.
package main

import (
	"fmt"
	"os"

	"github.com/telnet2/h5runner/cmd/h5runner/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

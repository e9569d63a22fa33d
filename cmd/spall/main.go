// Package main provides the entry point for the spall CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spall/spall/cmd/spall/cmd"
	spallerrors "github.com/spall/spall/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, spallerrors.FormatForCLI(err))
		os.Exit(1)
	}
}

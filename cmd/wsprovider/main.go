// Package main is the entry point for the wsprovider CLI.
package main

import (
	"os"

	"github.com/runger/wsprovider/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main provides the entry point for the minirag CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/minirag/cmd/minirag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the realtorctl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

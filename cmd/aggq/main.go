// Package main is the entry point for the aggq CLI binary.
package main

import (
	"os"

	"duck-analytics/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}

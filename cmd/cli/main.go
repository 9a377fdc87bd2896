// Package main is the entry point for the layerupdater CLI binary.
package main

import (
	"os"

	cli "github.com/danielmorris2014/arcgislayerupdaterr/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}

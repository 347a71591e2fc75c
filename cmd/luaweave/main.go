// Package main is the luaweave command.
package main

import (
	"os"

	"github.com/leapstack-labs/luaweave/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

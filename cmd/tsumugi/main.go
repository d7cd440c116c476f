// Package main is the entry point for the tsumugi CLI.
package main

import (
	"os"

	"github.com/tsumugi-bot/tsumugi/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

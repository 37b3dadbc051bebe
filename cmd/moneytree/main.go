package main

import (
	"os"

	"moneytree/cmd/moneytree/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

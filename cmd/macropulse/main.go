package main

import (
	"os"

	"macropulse/cmd/macropulse/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

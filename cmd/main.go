package main

import (
	"os"

	"imnci-mentorship/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/agrisense-dev/agrisense/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

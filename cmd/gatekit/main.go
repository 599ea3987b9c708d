package main

import (
	"os"

	"github.com/keshwara/gatekit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/FlavioCFOliveira/fraudrnn/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

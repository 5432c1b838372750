package main

import (
	"os"

	"github.com/mizunoki/ragna/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

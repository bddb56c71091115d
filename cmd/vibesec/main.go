package main

import (
	"os"

	"github.com/kobzevvv/vibe-sec/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

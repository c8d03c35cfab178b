package main

import (
	"os"

	"github.com/rememberme/rememberme/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

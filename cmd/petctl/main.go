package main

import (
	"os"

	"deskpet/cmd/petctl/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/spigell/ikimatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

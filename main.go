package main

import (
	"os"

	"github.com/mathprep/taskforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

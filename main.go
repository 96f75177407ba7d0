package main

import (
	"os"

	"github.com/wegman-software/osmraw/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

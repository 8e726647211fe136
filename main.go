package main

import (
	"os"

	"github.com/clausewise/clausewise/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

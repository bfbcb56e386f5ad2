package main

import (
	"os"

	"github.com/bluetuith-org/autopair/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}

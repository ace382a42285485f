package main

import (
	"os"

	"github.com/mbd888/fraudgate/cmd/simulate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

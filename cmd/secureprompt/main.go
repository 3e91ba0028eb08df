package main

import (
	"os"

	"github.com/albertopd/secureprompt/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/gobeaver/filegate/cmd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

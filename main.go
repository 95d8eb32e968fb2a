package main

import (
	"os"

	"atpkiosk/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

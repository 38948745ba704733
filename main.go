package main

import (
	"os"

	"github.com/yeremiapane/restaurant-pos/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

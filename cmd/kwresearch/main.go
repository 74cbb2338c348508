package main

import (
	"os"
)

func main() {
	c := &cli{out: os.Stdout, errOut: os.Stderr}
	if err := c.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/taskgate/taskgate/cli"
)

func main() {
	// Best effort; env vars win over .env values.
	_ = godotenv.Load()

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

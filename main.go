package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/lantern-ai/lantern/cmd"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

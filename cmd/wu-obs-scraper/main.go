package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"wu-obs-scraper/internal/cli"
)

func main() {
	// Optional .env support for WUOS_API_KEY and friends; a missing file is
	// not an error.
	_ = godotenv.Load()

	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

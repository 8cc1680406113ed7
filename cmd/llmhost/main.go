package main

import (
	"os"

	"llmhost/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}

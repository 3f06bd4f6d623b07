package main

import (
	"os"

	"retailetl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

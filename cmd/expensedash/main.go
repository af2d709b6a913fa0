package main

import (
	"os"

	"expensedash/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

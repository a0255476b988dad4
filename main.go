package main

import (
	"os"

	"github.com/scan-io-git/blockscan/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}

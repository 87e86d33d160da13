package main

import (
	"os"

	"mar.sh/marsh/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

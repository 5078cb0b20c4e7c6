package main

import (
	"os"

	"github.com/cvdmirror/cvdmirror/internal/command"
)

func main() {
	os.Exit(command.Execute())
}

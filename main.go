package main

import (
	"github.com/sidkik/rmasync/cmd"
	"github.com/sidkik/rmasync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}

package main

import (
	"os"

	"github.com/sethvargo/go-envconfig"
)

func main() {
	a := newApp(envconfig.OsLookuper())
	if err := execute(a, rootCommand(a)); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	stakedkg "github.com/drand/stakedkg/internal/stakedkg-cli"
)

func main() {
	app := stakedkg.CLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

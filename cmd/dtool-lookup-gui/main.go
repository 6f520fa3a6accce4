package main

import (
	"os"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/cli"
)

func main() {
	os.Exit(cli.Execute())
}

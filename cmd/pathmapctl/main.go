// Command pathmapctl inspects and converts PathMap serialization streams.
//
// Run using
//
//	go run ./cmd/pathmapctl <command> <flags>
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var formatFlag = cli.StringFlag{
	Name:  "format",
	Usage: "serialization format of the input file: linear or dag",
	Value: "linear",
}

func main() {
	app := &cli.App{
		Name:  "pathmapctl",
		Usage: "PathMap serialization toolbox",
		Commands: []*cli.Command{
			&dumpCmd,
			&verifyCmd,
			&convertCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var dumpCmd = cli.Command{
	Action:    doDump,
	Name:      "dump",
	Usage:     "prints every path/value pair stored in a serialized PathMap",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&formatFlag,
	},
}

func doDump(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing input file parameter")
	}
	m, err := loadMap(context.Args().Get(0), context.String(formatFlag.Name))
	if err != nil {
		return err
	}
	walk(m, func(path []byte, value string) {
		fmt.Printf("%q => %q\n", path, value)
	})
	return nil
}

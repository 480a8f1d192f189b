package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var verifyCmd = cli.Command{
	Action:    doVerify,
	Name:      "verify",
	Usage:     "decodes a serialized PathMap and reports its size, failing on a checksum or framing error",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&formatFlag,
	},
}

func doVerify(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing input file parameter")
	}
	m, err := loadMap(context.Args().Get(0), context.String(formatFlag.Name))
	if err != nil {
		return err
	}
	count := 0
	walk(m, func(path []byte, value string) { count++ })
	fmt.Printf("ok: %d entries\n", count)
	return nil
}

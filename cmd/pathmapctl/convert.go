package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	fromFlag = cli.StringFlag{
		Name:  "from",
		Usage: "source serialization format: linear or dag",
		Value: "linear",
	}
	toFlag = cli.StringFlag{
		Name:  "to",
		Usage: "destination serialization format: linear or dag",
		Value: "dag",
	}
)

var convertCmd = cli.Command{
	Action:    doConvert,
	Name:      "convert",
	Usage:     "re-encodes a serialized PathMap from one format into another",
	ArgsUsage: "<src-file> <dst-file>",
	Flags: []cli.Flag{
		&fromFlag,
		&toFlag,
	},
}

func doConvert(context *cli.Context) error {
	if context.Args().Len() != 2 {
		return fmt.Errorf("missing source and/or destination file parameter")
	}
	src, dst := context.Args().Get(0), context.Args().Get(1)

	m, err := loadMap(src, context.String(fromFlag.Name))
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	return encodeStream(out, m, context.String(toFlag.Name))
}

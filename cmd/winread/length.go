// cmd/winread/length.go

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/objectfs/windowio/pkg/utils"
)

func lengthFlags() *cli.Command {
	return &cli.Command{
		Name:      "length",
		Usage:     "print the number of bytes in a source",
		ArgsUsage: "SOURCE",
		Action:    length,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "human",
				Aliases: []string{"H"},
				Usage:   "print a human readable size",
			},
		},
	}
}

func length(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	n, err := s.reader.Length()
	if err != nil {
		return err
	}
	if c.Bool("human") {
		fmt.Println(utils.FormatBytes(n))
	} else {
		fmt.Println(n)
	}
	return nil
}

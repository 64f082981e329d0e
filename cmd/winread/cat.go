// cmd/winread/cat.go

package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

func catFlags() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "write a byte range of a source to standard output",
		ArgsUsage: "SOURCE",
		Action:    cat,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "from",
				Usage: "first position to write",
			},
			&cli.Int64Flag{
				Name:  "to",
				Value: -1,
				Usage: "last position to write (default: end of source)",
			},
			&cli.BoolFlag{
				Name:  "hex",
				Usage: "write a hex dump even when standard output is not a terminal",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "write raw bytes even when standard output is a terminal",
			},
		},
	}
}

func cat(c *cli.Context) error {
	from, to := c.Int64("from"), c.Int64("to")
	if to < 0 {
		to = math.MaxInt64
	}
	if from < 0 || to < from {
		return fmt.Errorf("invalid range [%d, %d]", from, to)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	out := bufio.NewWriterSize(os.Stdout, s.reader.WindowSize())
	var w io.Writer = out
	dump := c.Bool("hex") || (!c.Bool("raw") && isatty.IsTerminal(os.Stdout.Fd()))
	var dumper io.WriteCloser
	if dump {
		dumper = hex.Dumper(out)
		w = dumper
	}

	var written int64
	for chunk, err := range s.reader.Chunks(from, to) {
		if err != nil {
			return err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return err
		}
	}

	if dumper != nil {
		if err := dumper.Close(); err != nil {
			return err
		}
	}
	logger.Debugf("wrote %d bytes", written)
	return out.Flush()
}

// cmd/winread/main.go

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/objectfs/windowio/pkg/utils"
)

var logger = utils.GetLogger("winread")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatalf("%s", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "winread",
		Usage: "read files, streams and S3 objects through cached windows",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			catFlags(),
			lengthFlags(),
			windowFlags(),
			statsFlags(),
		},
		Before: func(c *cli.Context) error {
			setLoggerLevel(c)
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
		},
		&cli.StringFlag{
			Name:  "window-size",
			Usage: "window size such as 4K or 1M",
		},
		&cli.IntFlag{
			Name:  "capacity",
			Usage: "number of windows kept in memory",
		},
		&cli.BoolFlag{
			Name:  "overflow",
			Usage: "keep windows evicted from memory in an overflow store",
		},
		&cli.StringFlag{
			Name:  "overflow-backend",
			Usage: "overflow store: file or bolt",
		},
		&cli.StringFlag{
			Name:  "overflow-dir",
			Usage: "directory for overflow stores",
		},
		&cli.BoolFlag{
			Name:  "reclaimable",
			Usage: "let the garbage collector reclaim idle windows of rewindable sources",
		},
		&cli.IntFlag{
			Name:  "read-ahead",
			Usage: "windows to read ahead of sequential access",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "serve Prometheus metrics on this address while running",
		},
		&cli.StringFlag{
			Name:  "s3-region",
			Usage: "region for s3:// sources",
		},
		&cli.StringFlag{
			Name:  "s3-endpoint",
			Usage: "custom endpoint for s3:// sources",
		},
		&cli.BoolFlag{
			Name:  "s3-path-style",
			Usage: "use path-style addressing for s3:// sources",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "do not show progress while draining standard input",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"debug", "v"},
			Usage:   "enable debug log",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "only warning and errors",
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "enable trace log",
		},
	}
}

func setLoggerLevel(c *cli.Context) {
	switch {
	case c.Bool("trace"):
		utils.SetLogLevel(logrus.TraceLevel)
	case c.Bool("verbose"):
		utils.SetLogLevel(logrus.DebugLevel)
	case c.Bool("quiet"):
		utils.SetLogLevel(logrus.WarnLevel)
	default:
		utils.SetLogLevel(logrus.InfoLevel)
	}
}

func needSource(c *cli.Context) (string, error) {
	if c.Args().Len() < 1 {
		return "", fmt.Errorf("SOURCE is needed (a path, - for standard input, or s3://bucket/key)")
	}
	return c.Args().Get(0), nil
}

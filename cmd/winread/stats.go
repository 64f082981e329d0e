// cmd/winread/stats.go

package main

import (
	"github.com/urfave/cli/v2"

	"github.com/objectfs/windowio/pkg/types"
)

type statsReport struct {
	Source types.SourceInfo `json:"source"`
	Bytes  int64            `json:"bytes"`
	Cache  types.CacheStats `json:"cache"`
}

func statsFlags() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "read a source end to end and print reader and cache statistics",
		ArgsUsage: "SOURCE",
		Action:    stats,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "passes",
				Value: 1,
				Usage: "number of times to read the source",
			},
		},
	}
}

func stats(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	var total int64
	for range max(c.Int("passes"), 1) {
		for chunk, err := range s.reader.Bytes() {
			if err != nil {
				return err
			}
			total += int64(len(chunk))
		}
	}

	report := &statsReport{
		Source: s.reader.Info(),
		Bytes:  total,
		Cache:  s.reader.Stats(),
	}
	report.Cache.UpdateHitRate()
	printJson(report)
	return nil
}

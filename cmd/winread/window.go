// cmd/winread/window.go

package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

type windowInfo struct {
	Position     int64 `json:"position"`
	Length       int   `json:"length"`
	EndPosition  int64 `json:"end_position"`
	NextPosition int64 `json:"next_position"`
	Reclaimable  bool  `json:"reclaimable"`
}

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

func windowFlags() *cli.Command {
	return &cli.Command{
		Name:      "window",
		Usage:     "describe the window containing a position",
		ArgsUsage: "SOURCE",
		Action:    describeWindow,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "position",
				Aliases:  []string{"p"},
				Required: true,
				Usage:    "absolute position in the source",
			},
		},
	}
}

func describeWindow(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	pos := c.Int64("position")
	w, err := s.reader.Window(pos)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("no data at position %d", pos)
	}

	printJson(&windowInfo{
		Position:     w.Position(),
		Length:       w.Length(),
		EndPosition:  w.EndPosition(),
		NextPosition: w.NextPosition(),
		Reclaimable:  w.Reclaimable(),
	})
	return nil
}

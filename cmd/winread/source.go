// cmd/winread/source.go

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/objectfs/windowio/internal/config"
	"github.com/objectfs/windowio/internal/metrics"
	"github.com/objectfs/windowio/internal/storage/s3"
	"github.com/objectfs/windowio/pkg/reader"
	"github.com/objectfs/windowio/pkg/utils"
)

// session is one opened source plus everything that has to be shut down with it.
type session struct {
	reader    *reader.Reader
	collector *metrics.Collector
	progress  *mpb.Progress
	bar       *mpb.Bar
}

func loadConfig(c *cli.Context) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if path := c.String("config"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if c.IsSet("window-size") {
		cfg.Reader.WindowSize = c.String("window-size")
	}
	if c.IsSet("capacity") {
		cfg.Cache.Capacity = c.Int("capacity")
	}
	if c.IsSet("overflow") {
		cfg.Cache.Overflow.Enabled = c.Bool("overflow")
	}
	if c.IsSet("overflow-backend") {
		cfg.Cache.Overflow.Backend = c.String("overflow-backend")
	}
	if c.IsSet("overflow-dir") {
		cfg.Cache.Overflow.Directory = c.String("overflow-dir")
	}
	if c.IsSet("reclaimable") {
		cfg.Reader.Reclaimable = c.Bool("reclaimable")
	}
	if c.IsSet("read-ahead") {
		cfg.Reader.ReadAhead = c.Int("read-ahead")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = c.String("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Flags on the command line win over the configured level.
	if !c.IsSet("trace") && !c.IsSet("verbose") && !c.IsSet("quiet") {
		if err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFile); err != nil {
			return nil, err
		}
	} else if cfg.Global.LogFile != "" {
		if err := utils.SetOutFile(cfg.Global.LogFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openSession opens the source named on the command line.
func openSession(c *cli.Context) (*session, error) {
	name, err := needSource(c)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	s := &session{}
	if s.collector, err = cfg.NewCollector(); err != nil {
		return nil, err
	}
	if err := s.collector.Start(c.Context); err != nil {
		return nil, err
	}

	if s.reader, err = s.open(c, cfg, name); err != nil {
		s.close()
		return nil, err
	}
	logger.Debugf("opened %s as reader %s", name, s.reader.ID())
	return s, nil
}

func (s *session) open(c *cli.Context, cfg *config.Configuration, name string) (*reader.Reader, error) {
	switch {
	case name == "-":
		// Standard input cannot be read twice, so nothing may be dropped.
		cfg.Cache.Overflow.Enabled = true
		opts, err := cfg.ReaderOptions(s.collector)
		if err != nil {
			return nil, err
		}
		return reader.NewStreamReader(s.track(os.Stdin, c.Bool("no-progress")), opts)

	case strings.HasPrefix(name, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(name, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid S3 location %q, want s3://bucket/key", name)
		}
		opts, err := cfg.ReaderOptions(s.collector)
		if err != nil {
			return nil, err
		}
		s3cfg := s3.NewDefaultConfig()
		s3cfg.Region = c.String("s3-region")
		s3cfg.Endpoint = c.String("s3-endpoint")
		s3cfg.ForcePathStyle = c.Bool("s3-path-style")
		client, err := s3.NewClient(c.Context, s3cfg)
		if err != nil {
			return nil, err
		}
		return s3.NewReader(c.Context, client, bucket, key, s3cfg, opts)

	default:
		opts, err := cfg.ReaderOptions(s.collector)
		if err != nil {
			return nil, err
		}
		return reader.NewFileReader(name, opts)
	}
}

// track counts bytes taken from standard input on a progress bar when stderr is a
// terminal.
func (s *session) track(in io.Reader, quiet bool) io.Reader {
	if quiet || !isatty.IsTerminal(os.Stderr.Fd()) {
		return in
	}
	s.progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	s.bar = s.progress.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("stdin", decor.WCSyncWidth),
			decor.Current(decor.SizeB1024(0), "% .1f"),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageSpeed(decor.SizeB1024(0), "% .1f"), "done"),
		),
	)
	return s.bar.ProxyReader(in)
}

func (s *session) close() {
	if s.bar != nil {
		s.bar.SetTotal(-1, true)
		s.progress.Wait()
	}
	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			logger.Warnf("close reader: %s", err)
		}
	}
	if err := s.collector.Stop(context.Background()); err != nil {
		logger.Warnf("stop metrics: %s", err)
	}
}

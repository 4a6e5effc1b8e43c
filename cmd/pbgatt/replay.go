package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/bearer"
	"github.com/rigado/pbgatt/ipc"
	"github.com/rigado/pbgatt/stack/sim"
	"github.com/rigado/pbgatt/trace"
	"github.com/urfave/cli"
)

var replayCommand = cli.Command{
	Name:      "replay",
	Usage:     "feed a recorded event trace to a simulated stack and print the bridge messages",
	ArgsUsage: "[trace file]",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "clear",
			Usage: "empty the trace file after a successful replay",
		},
	},
	Action: replayAction,
}

func replayAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	path := c.Args().First()
	if path == "" {
		path = cfg.Trace.Path
	}
	if path == "" {
		return cli.NewExitError("no trace file given and trace.path not set", 2)
	}

	return replayTrace(trace.New(path), os.Stdout, c.Bool("clear"), cfg.Options()...)
}

// replayTrace replays the records of tr and, when clearAfter is set and the
// replay succeeded, empties tr.
func replayTrace(tr pbgatt.EventTrace, w io.Writer, clearAfter bool, opts ...pbgatt.Option) error {
	rr, err := tr.Load()
	if err != nil {
		return errors.Wrap(err, "load trace")
	}
	if err := replay(rr, w, opts...); err != nil {
		return err
	}
	if clearAfter {
		return errors.Wrap(tr.Clear(), "clear trace")
	}
	return nil
}

// replay dispatches the recorded events in order against a simulated
// stack and writes every bridge message to w as a JSON line.
func replay(rr []pbgatt.TraceRecord, w io.Writer, opts ...pbgatt.Option) error {
	var failed error
	opts = append(opts,
		pbgatt.OptLogger(pbgatt.NopLogger()),
		pbgatt.OptErrorHandler(func(err error) {
			if failed == nil {
				failed = err
			}
		}),
	)

	b, err := bearer.New(sim.New(nil), ipc.NewJSONBridge(w), opts...)
	if err != nil {
		return err
	}
	defer b.Close()

	for _, r := range rr {
		b.Dispatch(r.Event)
		if failed != nil {
			return errors.Wrapf(failed, "record %v", r.Seq)
		}
	}
	fmt.Fprintf(os.Stderr, "replayed %v events\n", len(rr))
	return nil
}

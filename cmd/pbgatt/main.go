// Command pbgatt runs the mesh provisioning GATT bearer between the local
// BLE stack and a provisioning stack reached over serial or a socket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/config"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "pbgatt"
	app.Usage = "mesh provisioning over GATT"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: config.DefaultConfigPath(),
			Usage: "config file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override log_level from the config file",
		},
	}
	app.Commands = []cli.Command{
		serveCommand,
		replayCommand,
		advCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config. A missing default config
// file is not an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.GlobalString("config")

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil || c.GlobalIsSet("config") {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if lvl := c.GlobalString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := pbgatt.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withSigHandler cancels ctx on SIGINT or SIGTERM.
func withSigHandler(ctx context.Context, cancel func()) context.Context {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}

func chkErr(err error) error {
	switch errors.Cause(err) {
	case nil, context.Canceled, pbgatt.ErrClosed:
		return nil
	default:
		return err
	}
}

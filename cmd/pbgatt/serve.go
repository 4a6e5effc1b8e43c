package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/bearer"
	"github.com/rigado/pbgatt/config"
	"github.com/rigado/pbgatt/ipc"
	"github.com/rigado/pbgatt/linux/bluez"
	"github.com/rigado/pbgatt/trace"
	"github.com/urfave/cli"
)

var serveCommand = cli.Command{
	Name:   "serve",
	Usage:  "advertise the provisioning service and bridge it to the provisioning stack",
	Action: serve,
}

func openIPC(ctx context.Context, cfg config.IPCConfig) (io.ReadWriteCloser, error) {
	switch cfg.Transport {
	case "serial":
		return ipc.OpenSerial(ipc.DefaultSerialOptions(cfg.Port, cfg.Baud))
	case "socket":
		return ipc.DialSocket(ctx, cfg.Network, cfg.Address, cfg.Timeout)
	default:
		return nil, errors.Errorf("unknown ipc transport %q", cfg.Transport)
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l := pbgatt.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = withSigHandler(ctx, cancel)

	codec, err := ipc.CodecByName(cfg.IPC.Codec)
	if err != nil {
		return err
	}
	rwc, err := openIPC(ctx, cfg.IPC)
	if err != nil {
		return err
	}
	link := ipc.NewLink(rwc, codec, l)
	defer link.Close()

	a, err := bluez.New(l)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := append(cfg.Options(), pbgatt.OptLogger(l))
	if cfg.Trace.Path != "" {
		opts = append(opts, pbgatt.OptTrace(trace.New(cfg.Trace.Path)))
	}
	b, err := bearer.New(a, link, opts...)
	if err != nil {
		return errors.Wrap(err, "start bearer")
	}
	defer b.Close()

	beacon, err := cfg.Beacon()
	if err != nil {
		return err
	}
	if err := a.Advertise(cfg.Advertising.Name, beacon); err != nil {
		return err
	}

	errc := make(chan error, 2)
	go func() { errc <- b.Run(ctx, a.Events()) }()
	go func() { errc <- link.Serve(ctx, b.ServeIPC) }()

	err = <-errc
	cancel()
	l.Infof("stopping: %v", err)
	return chkErr(err)
}

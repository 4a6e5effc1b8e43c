package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/adv"
	"github.com/rigado/pbgatt/parser"
	"github.com/urfave/cli"
)

var advCommand = cli.Command{
	Name:   "adv",
	Usage:  "print the advertising payload of the unprovisioned device beacon",
	Action: advAction,
}

func advAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := cfg.Beacon()
	if err != nil {
		return err
	}
	return printBeacon(os.Stdout, b)
}

func printBeacon(w io.Writer, b pbgatt.Beacon) error {
	p, err := adv.NewPacket(
		adv.Flags(adv.FlagGeneralDiscoverable|adv.FlagLEOnly),
		adv.ProvisioningBeacon(b),
	)
	if err != nil {
		return err
	}

	// check the payload decodes back to the same beacon
	got, err := parser.ProvisioningBeacon(p.Bytes())
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "payload:     %v\n", hex.EncodeToString(p.Bytes()))
	fmt.Fprintf(w, "length:      %v\n", p.Len())
	fmt.Fprintf(w, "device uuid: %v\n", got.DeviceUUID)
	fmt.Fprintf(w, "oob info:    0x%04x\n", got.OOBInfo)
	return nil
}

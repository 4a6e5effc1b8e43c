// +build !linux

package bluez

import (
	"fmt"

	"github.com/rigado/pbgatt"
)

// Adapter is a placeholder for non-Linux platforms.
type Adapter struct{}

// New is a dummy function for non-Linux platforms.
func New(l pbgatt.Logger) (*Adapter, error) {
	return nil, fmt.Errorf("only available on linux")
}

func (a *Adapter) Events() <-chan []byte { return nil }

func (a *Adapter) RegisterService(p pbgatt.ServiceParams) ([]pbgatt.CharacteristicHandles, error) {
	return nil, fmt.Errorf("only available on linux")
}

func (a *Adapter) ExchangeMTUReply(conn uint16, mtu uint16) error {
	return fmt.Errorf("only available on linux")
}

func (a *Adapter) Notify(conn uint16, handle uint16, data []byte) error {
	return fmt.Errorf("only available on linux")
}

func (a *Adapter) Advertise(name string, b pbgatt.Beacon) error {
	return fmt.Errorf("only available on linux")
}

func (a *Adapter) Close() error { return nil }

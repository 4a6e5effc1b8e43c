// +build linux

// Package bluez runs the provisioning service on the local BlueZ adapter.
// BlueZ hides connection handles and ATT_MTU negotiation, so the adapter
// numbers connections itself and reports MTU replies as done.
package bluez

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/evt"
	"tinygo.org/x/bluetooth"
)

const (
	eventQueueSize = 64

	// first handle after the GAP and GATT services
	firstHandle = 0x000c

	// remote user terminated connection
	reasonRemoteUser = 0x13
)

// Adapter implements pbgatt.Stack on top of BlueZ.
type Adapter struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	logger  pbgatt.Logger

	events chan []byte
	closed bool

	mu        sync.Mutex
	next      uint16
	chars     map[uint16]*bluetooth.Characteristic
	conn      uint16
	connected bool
	dropped   int
}

// New enables the default adapter and starts watching connections.
func New(l pbgatt.Logger) (*Adapter, error) {
	if l == nil {
		l = pbgatt.GetLogger()
	}

	a := &Adapter{
		adapter: bluetooth.DefaultAdapter,
		logger:  l.ChildLogger(map[string]interface{}{"pkg": "bluez"}),
		events:  make(chan []byte, eventQueueSize),
		next:    firstHandle,
		chars:   map[uint16]*bluetooth.Characteristic{},
	}

	if err := a.adapter.Enable(); err != nil {
		return nil, errors.Wrap(err, "enable adapter")
	}
	a.adapter.SetConnectHandler(a.handleConnect)
	return a, nil
}

// Events returns the stack event packets, see package evt.
func (a *Adapter) Events() <-chan []byte {
	return a.events
}

func (a *Adapter) handleConnect(d bluetooth.Device, connected bool) {
	a.mu.Lock()
	if connected {
		a.conn++
		a.connected = true
	} else {
		a.connected = false
	}
	conn := a.conn
	a.mu.Unlock()

	if !connected {
		a.logger.Infof("disconnected %v (conn %v)", d.Address.String(), conn)
		a.emit(evt.NewDisconnected(conn, reasonRemoteUser))
		return
	}

	at := uint8(pbgatt.AddrPublic)
	if d.Address.IsRandom() {
		at = uint8(pbgatt.AddrRandomStatic)
	}
	a.logger.Infof("connected %v (conn %v)", d.Address.String(), conn)
	a.emit(evt.NewConnected(conn, at, d.Address.MAC, evt.RolePeripheral))
}

func (a *Adapter) emit(pkt []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	select {
	case a.events <- pkt:
	default:
		a.dropped++
		a.logger.Warnf("event queue full, dropped %v events", a.dropped)
	}
}

func flags(p pbgatt.Property) bluetooth.CharacteristicPermissions {
	var f bluetooth.CharacteristicPermissions
	if p&pbgatt.PropRead != 0 {
		f |= bluetooth.CharacteristicReadPermission
	}
	if p&pbgatt.PropWrite != 0 {
		f |= bluetooth.CharacteristicWritePermission
	}
	if p&pbgatt.PropWriteNoResp != 0 {
		f |= bluetooth.CharacteristicWriteWithoutResponsePermission
	}
	if p&pbgatt.PropNotify != 0 {
		f |= bluetooth.CharacteristicNotifyPermission
	}
	if p&pbgatt.PropIndicate != 0 {
		f |= bluetooth.CharacteristicIndicatePermission
	}
	return f
}

func (a *Adapter) RegisterService(p pbgatt.ServiceParams) ([]pbgatt.CharacteristicHandles, error) {
	if len(p.Characteristics) == 0 {
		return nil, errors.Errorf("service 0x%04X has no characteristics", p.UUID)
	}

	a.mu.Lock()
	next := a.next + 1
	a.mu.Unlock()

	svc := bluetooth.Service{UUID: bluetooth.New16BitUUID(p.UUID)}
	hh := make([]pbgatt.CharacteristicHandles, 0, len(p.Characteristics))
	chars := map[uint16]*bluetooth.Characteristic{}

	for _, c := range p.Characteristics {
		next += 2
		h := pbgatt.CharacteristicHandles{Value: next}
		if c.Props&(pbgatt.PropNotify|pbgatt.PropIndicate) != 0 {
			next++
			h.CCCD = next
		}

		ch := &bluetooth.Characteristic{}
		cfg := bluetooth.CharacteristicConfig{
			Handle: ch,
			UUID:   bluetooth.New16BitUUID(c.UUID),
			Flags:  flags(c.Props),
		}
		if c.Props&(pbgatt.PropWrite|pbgatt.PropWriteNoResp) != 0 {
			cfg.WriteEvent = a.writeEvent(h.Value, c.Props)
		}
		svc.Characteristics = append(svc.Characteristics, cfg)

		chars[h.Value] = ch
		hh = append(hh, h)
	}

	if err := a.adapter.AddService(&svc); err != nil {
		return nil, errors.Wrapf(err, "add service 0x%04X", p.UUID)
	}

	a.mu.Lock()
	a.next = next
	for h, ch := range chars {
		a.chars[h] = ch
	}
	a.mu.Unlock()
	return hh, nil
}

func (a *Adapter) writeEvent(handle uint16, p pbgatt.Property) func(bluetooth.Connection, int, []byte) {
	op := evt.WriteOpWriteReq
	if p&pbgatt.PropWriteNoResp != 0 {
		op = evt.WriteOpWriteCmd
	}

	return func(_ bluetooth.Connection, offset int, value []byte) {
		a.mu.Lock()
		conn, ok := a.conn, a.connected
		a.mu.Unlock()
		if !ok {
			a.logger.Debugf("write to 0x%04X without a connection", handle)
			return
		}
		a.emit(evt.NewWrite(conn, handle, op, uint16(offset), value))
	}
}

// ExchangeMTUReply is a no-op: BlueZ answers the request itself.
func (a *Adapter) ExchangeMTUReply(conn uint16, mtu uint16) error {
	if mtu < pbgatt.MinMTU {
		return errors.Wrapf(pbgatt.ErrInvalidMTU, "%v", mtu)
	}
	a.logger.Debugf("conn %v: mtu %v handled by bluez", conn, mtu)
	return nil
}

func (a *Adapter) Notify(conn uint16, handle uint16, data []byte) error {
	a.mu.Lock()
	ch, ok := a.chars[handle]
	current := a.connected && a.conn == conn
	a.mu.Unlock()

	if !ok {
		return errors.Errorf("handle 0x%04X not registered", handle)
	}
	if !current {
		return errors.Wrapf(pbgatt.ErrPeerDisconnected, "conn %v", conn)
	}

	if _, err := ch.Write(data); err != nil {
		return errors.Wrapf(err, "notify 0x%04X", handle)
	}
	a.emit(evt.NewTxComplete(conn, 1))
	return nil
}

// Advertise starts advertising the provisioning service with b as service
// data.
func (a *Adapter) Advertise(name string, b pbgatt.Beacon) error {
	id := bluetooth.New16BitUUID(pbgatt.ProvisioningServiceUUID)

	adv := a.adapter.DefaultAdvertisement()
	err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{id},
		ServiceData: []bluetooth.ServiceDataElement{
			{UUID: id, Data: b.ServiceData()},
		},
	})
	if err != nil {
		return errors.Wrap(err, "configure advertisement")
	}
	if err := adv.Start(); err != nil {
		return errors.Wrap(err, "start advertising")
	}

	a.mu.Lock()
	a.adv = adv
	a.mu.Unlock()
	a.logger.Infof("advertising %q, device uuid %v", name, b.DeviceUUID)
	return nil
}

// Close stops advertising and closes the events channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	close(a.events)

	if a.adv != nil {
		return errors.Wrap(a.adv.Stop(), "stop advertising")
	}
	return nil
}

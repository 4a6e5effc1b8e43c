// Package sim is an in-memory BLE stack. It assigns attribute handles,
// records MTU replies and notifications, and can be told to report busy.
package sim

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/pbgatt"
	"github.com/rigado/pbgatt/evt"
)

// firstHandle is the last handle taken by the GAP and GATT services a
// real stack registers first.
const firstHandle = 0x000c

// MTUReply is a recorded exchange MTU reply.
type MTUReply struct {
	Conn uint16
	MTU  uint16
}

// Notification is a recorded notification.
type Notification struct {
	Conn   uint16
	Handle uint16
	Data   []byte
}

// Stack implements pbgatt.Stack.
type Stack struct {
	mu sync.Mutex

	next     uint16
	services []pbgatt.ServiceParams
	notify   map[uint16]pbgatt.CharacteristicParams

	busy    int
	events  chan<- []byte
	dropped int

	replies       []MTUReply
	notifications []Notification
}

// New returns an empty stack. When events is not nil every accepted
// notification is followed by a tx complete event on it.
func New(events chan<- []byte) *Stack {
	return &Stack{
		next:   firstHandle,
		notify: map[uint16]pbgatt.CharacteristicParams{},
		events: events,
	}
}

func (s *Stack) RegisterService(p pbgatt.ServiceParams) ([]pbgatt.CharacteristicHandles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(p.Characteristics) == 0 {
		return nil, errors.Errorf("service 0x%04X has no characteristics", p.UUID)
	}
	for _, sp := range s.services {
		if sp.UUID == p.UUID {
			return nil, errors.Errorf("service 0x%04X already registered", p.UUID)
		}
	}

	// service declaration
	s.next++

	hh := make([]pbgatt.CharacteristicHandles, 0, len(p.Characteristics))
	for _, c := range p.Characteristics {
		// declaration, then value
		s.next += 2
		h := pbgatt.CharacteristicHandles{Value: s.next}
		if c.Props&(pbgatt.PropNotify|pbgatt.PropIndicate) != 0 {
			s.next++
			h.CCCD = s.next
			s.notify[h.Value] = c
		}
		hh = append(hh, h)
	}

	s.services = append(s.services, p)
	return hh, nil
}

func (s *Stack) ExchangeMTUReply(conn uint16, mtu uint16) error {
	if mtu < pbgatt.MinMTU {
		return errors.Wrapf(pbgatt.ErrInvalidMTU, "%v", mtu)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, MTUReply{Conn: conn, MTU: mtu})
	return nil
}

func (s *Stack) Notify(conn uint16, handle uint16, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.notify[handle]
	if !ok {
		return errors.Errorf("handle 0x%04X does not notify", handle)
	}
	if len(data) > int(c.MaxLen) {
		return errors.Errorf("handle 0x%04X: %v bytes > max %v", handle, len(data), c.MaxLen)
	}
	if s.busy > 0 {
		s.busy--
		return pbgatt.ErrBusy
	}

	s.notifications = append(s.notifications, Notification{Conn: conn, Handle: handle, Data: append([]byte{}, data...)})

	if s.events != nil {
		select {
		case s.events <- evt.NewTxComplete(conn, 1):
		default:
			s.dropped++
		}
	}
	return nil
}

// InjectBusy makes the next n notifications fail with pbgatt.ErrBusy.
func (s *Stack) InjectBusy(n int) {
	s.mu.Lock()
	s.busy = n
	s.mu.Unlock()
}

// Services returns the registered services.
func (s *Stack) Services() []pbgatt.ServiceParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pbgatt.ServiceParams{}, s.services...)
}

// MTUReplies returns the exchange MTU replies so far.
func (s *Stack) MTUReplies() []MTUReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MTUReply{}, s.replies...)
}

// Notifications returns the accepted notifications so far.
func (s *Stack) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification{}, s.notifications...)
}

// Dropped returns how many tx complete events did not fit the events
// channel.
func (s *Stack) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

package pbgatt

import "github.com/pkg/errors"

var (
	// ErrBusy is returned by a Stack when it is temporarily out of
	// resources. Callers may retry.
	ErrBusy = errors.New("stack busy")

	ErrStackBusyTimeout = errors.New("stack busy: retries exhausted")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrNotRegistered    = errors.New("provisioning service not registered")
	ErrPayloadTooLarge  = errors.New("payload exceeds mtu")
	ErrQueueFull        = errors.New("send queue full")
	ErrClosed           = errors.New("bearer closed")
	ErrInvalidMTU       = errors.New("invalid mtu")
)

// IsBusy reports whether err, or the error it wraps, is ErrBusy.
func IsBusy(err error) bool {
	return err != nil && errors.Cause(err) == ErrBusy
}

package pbgatt

// Conn is a live connection as seen by the bearer: from the connected
// event until the disconnected event.
type Conn interface {
	// Handle returns the stack's connection handle.
	Handle() uint16

	// Peer returns the remote device's address.
	Peer() BDAddr

	// Disconnected returns a receiving channel, which is closed when the connection disconnects.
	Disconnected() <-chan struct{}
}

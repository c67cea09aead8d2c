package core

import "errors"

// Frame is one encoded message for the signaling transport.
type Frame []byte

// ConnID identifies one transport session for its whole lifetime.
type ConnID string

var ErrConnClosed = errors.New("connection closed")

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full or closed connection returns an error.
type SignalConnection interface {
	ID() ConnID
	TrySend(Frame) error
	Close()
}

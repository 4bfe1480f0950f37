// Package link carries file-transfer messages between the engine and its peers.
//
// A Conn moves whole wire.Messages. Stream frames them over any byte stream
// (serial lines, pipes); UDP carries one message per datagram; Pipe connects
// two in-process ends. Router reads from a Conn, hands each message to the
// engine and writes the engine's replies back.
package link

import (
	"context"
	"errors"

	"github.com/justapithecus/skylink/wire"
)

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("link: connection closed")

// ErrNoPeer is returned when a UDP link has nobody to reply to yet.
var ErrNoPeer = errors.New("link: no peer address")

// Conn is a bidirectional message transport.
//
// ReadMessage is called from a single goroutine. WriteMessage may be called
// concurrently with ReadMessage and with itself. Close unblocks a pending
// ReadMessage and is idempotent.
type Conn interface {
	ReadMessage(ctx context.Context) (wire.Message, error)
	WriteMessage(msg wire.Message) error
	Close() error
}

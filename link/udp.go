package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/justapithecus/skylink/ipc"
	"github.com/justapithecus/skylink/wire"
)

// maxDatagram bounds a received datagram. Anything larger fails to decode.
const maxDatagram = 2048

// UDP is a Conn carrying one msgpack-encoded message per datagram.
//
// Replies go to the source of the most recent datagram unless a fixed
// remote address was given.
type UDP struct {
	conn  *net.UDPConn
	fixed bool
	buf   [maxDatagram]byte

	mu   sync.Mutex
	peer *net.UDPAddr
}

// ListenUDP binds listen (host:port). If remote is non-empty, every message
// is sent there instead of to the last sender.
func ListenUDP(listen, remote string) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("link: resolve %s: %w", listen, err)
	}

	u := &UDP{}
	if remote != "" {
		raddr, err := net.ResolveUDPAddr("udp", remote)
		if err != nil {
			return nil, fmt.Errorf("link: resolve %s: %w", remote, err)
		}
		u.peer = raddr
		u.fixed = true
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("link: listen %s: %w", listen, err)
	}
	u.conn = conn
	return u, nil
}

// LocalAddr returns the bound address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Peer returns the current reply address, or nil.
func (u *UDP) Peer() *net.UDPAddr {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.peer
}

// ReadMessage reads and decodes one datagram. It blocks until a datagram
// arrives, the conn is closed, or ctx's deadline passes; cancellation
// without a deadline is not observed until Close.
func (u *UDP) ReadMessage(ctx context.Context) (wire.Message, error) {
	if err := ctx.Err(); err != nil {
		return wire.Message{}, err
	}

	deadline, _ := ctx.Deadline()
	if err := u.conn.SetReadDeadline(deadline); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return wire.Message{}, ErrClosed
		}
		return wire.Message{}, err
	}

	n, addr, err := u.conn.ReadFromUDP(u.buf[:])
	if err != nil {
		switch {
		case errors.Is(err, net.ErrClosed):
			return wire.Message{}, ErrClosed
		case errors.Is(err, os.ErrDeadlineExceeded):
			return wire.Message{}, context.DeadlineExceeded
		}
		return wire.Message{}, err
	}

	if !u.fixed {
		u.mu.Lock()
		u.peer = addr
		u.mu.Unlock()
	}

	return ipc.DecodeMessage(u.buf[:n])
}

// WriteMessage encodes msg into one datagram and sends it to the peer.
func (u *UDP) WriteMessage(msg wire.Message) error {
	peer := u.Peer()
	if peer == nil {
		return ErrNoPeer
	}

	b, err := wire.MarshalMessage(&msg)
	if err != nil {
		return fmt.Errorf("link: encode message: %w", err)
	}
	if _, err := u.conn.WriteToUDP(b, peer); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close closes the socket.
func (u *UDP) Close() error {
	err := u.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

var _ Conn = (*UDP)(nil)

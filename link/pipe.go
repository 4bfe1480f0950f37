package link

import (
	"context"
	"sync"

	"github.com/justapithecus/skylink/wire"
)

// pipeDepth is the number of messages buffered in each direction.
const pipeDepth = 256

// Pipe returns two connected in-memory Conns. A message written to one end
// is read from the other. Closing either end closes both.
func Pipe() (Conn, Conn) {
	ab := make(chan wire.Message, pipeDepth)
	ba := make(chan wire.Message, pipeDepth)
	shared := &pipeState{done: make(chan struct{})}
	return &pipeEnd{in: ba, out: ab, state: shared}, &pipeEnd{in: ab, out: ba, state: shared}
}

type pipeState struct {
	once sync.Once
	done chan struct{}
}

type pipeEnd struct {
	in    <-chan wire.Message
	out   chan<- wire.Message
	state *pipeState
}

func (p *pipeEnd) ReadMessage(ctx context.Context) (wire.Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.state.done:
		return wire.Message{}, ErrClosed
	case <-ctx.Done():
		return wire.Message{}, ctx.Err()
	}
}

func (p *pipeEnd) WriteMessage(msg wire.Message) error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.state.done:
		return ErrClosed
	}
}

func (p *pipeEnd) Close() error {
	p.state.once.Do(func() { close(p.state.done) })
	return nil
}

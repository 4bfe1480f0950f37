package link

import (
	"context"
	"errors"
	"io"

	"github.com/justapithecus/skylink/ipc"
	"github.com/justapithecus/skylink/log"
	"github.com/justapithecus/skylink/metrics"
	"github.com/justapithecus/skylink/wire"
)

// Handler consumes inbound messages. *ftpserver.Server implements it.
type Handler interface {
	HandleMessage(msg wire.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg wire.Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg wire.Message) { f(msg) }

// Router pumps messages between a Conn and a Handler.
//
// It also implements ftpserver.Sender, so the engine replies through the
// same Conn it reads from.
type Router struct {
	conn    Conn
	logger  *log.Logger
	metrics *metrics.Collector
}

// NewRouter creates a Router over conn. logger and collector may be nil.
func NewRouter(conn Conn, logger *log.Logger, collector *metrics.Collector) *Router {
	if logger == nil {
		logger = log.Nop()
	}
	return &Router{conn: conn, logger: logger, metrics: collector}
}

// Send writes msg to the link.
func (r *Router) Send(msg wire.Message) error {
	return r.conn.WriteMessage(msg)
}

// Serve reads messages and hands them to h until ctx is cancelled, the
// Conn is closed, or the link fails.
//
// A message that fails to decode is counted and skipped. Cancelling ctx
// closes the Conn; Serve then returns nil.
func (r *Router) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = r.conn.Close() })
	defer stop()

	for {
		msg, err := r.conn.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) {
				return nil
			}
			var frameErr *ipc.FrameError
			if errors.As(err, &frameErr) && !frameErr.IsFatal() {
				r.metrics.IncLinkDecodeError()
				r.logger.Debug("dropping undecodable message", map[string]any{"error": err.Error()})
				continue
			}
			r.logger.Error("link read failed", map[string]any{"error": err.Error()})
			return err
		}
		h.HandleMessage(msg)
	}
}

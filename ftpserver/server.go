// Package ftpserver implements the server side of the file-transfer
// protocol: a request/response state machine exposing a sandboxed
// directory tree over a small-MTU message link.
//
// A Server owns at most one file session at a time. Requests are handled
// synchronously on the caller's goroutine, one at a time, and produce
// exactly one reply through the Sender. The one exception is a burst read,
// which is answered by a stream of packets from a background worker.
package ftpserver

import (
	"fmt"
	"os"
	"sync"

	"github.com/justapithecus/skylink/log"
	"github.com/justapithecus/skylink/metrics"
	"github.com/justapithecus/skylink/sandbox"
	"github.com/justapithecus/skylink/types"
	"github.com/justapithecus/skylink/wire"
)

// Sender transmits a reply onto the link.
// Send may be called from the request goroutine or the burst worker, but
// never concurrently: both send with the session lock held. Send must not
// call back into the Server.
type Sender interface {
	Send(msg wire.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(msg wire.Message) error

// Send calls f(msg).
func (f SenderFunc) Send(msg wire.Message) error { return f(msg) }

// EventSink receives transfer events. Record is called with engine locks
// held and must not block.
type EventSink interface {
	Record(e *types.TransferEvent)
}

type nopSink struct{}

func (nopSink) Record(*types.TransferEvent) {}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to log.Nop().
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics collector. A nil collector is valid.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithEventSink sets the transfer event sink.
func WithEventSink(sink EventSink) Option {
	return func(s *Server) { s.events = sink }
}

// WithTempDir sets the parent directory for WriteTempFile. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(s *Server) { s.tmpParent = dir }
}

// Server is the file-transfer protocol engine.
//
// Two locks are held in a fixed order. reqMu serializes request handling
// and owns the burst worker handle; mu guards the session, resolver and
// alias table. The burst worker takes only mu, once per packet, so a
// request that must stop it can cancel and join while holding reqMu alone.
type Server struct {
	self    wire.Address
	sender  Sender
	logger  *log.Logger
	metrics *metrics.Collector
	events  EventSink

	reqMu  sync.Mutex
	burst  *burstWorker
	closed bool

	mu        sync.Mutex
	resolver  sandbox.Resolver
	aliases   map[string]string
	tmpParent string
	tmpDir    string
	peer      wire.Address
	sess      session
}

// New creates a Server answering as self and replying through sender.
// No root directory is set; every path request fails until
// SetRootDirectory succeeds.
func New(self wire.Address, sender Sender, opts ...Option) *Server {
	s := &Server{
		self:    self,
		sender:  sender,
		logger:  log.Nop(),
		events:  nopSink{},
		aliases: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Self returns the address the server answers as.
func (s *Server) Self() wire.Address {
	return s.self
}

// SetRootDirectory replaces the sandbox root. The path is canonicalized;
// if that fails the root is cleared, so all path requests fail, and the
// error is returned.
func (s *Server) SetRootDirectory(root string) error {
	resolver, err := sandbox.NewResolver(root)

	s.mu.Lock()
	s.resolver = resolver
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("root directory unusable", map[string]any{"root": root, "error": err.Error()})
		return err
	}
	s.logger.Debug("root directory set", map[string]any{"root": resolver.Root()})
	return nil
}

// RootDirectory returns the canonical root, or "" if none is set.
func (s *Server) RootDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Root()
}

// Close stops any burst, closes the open session and removes files
// created by WriteTempFile. Requests received after Close are ignored.
func (s *Server) Close() error {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancelBurst()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeSession(types.OutcomeShutdown)

	if s.tmpDir != "" {
		if err := os.RemoveAll(s.tmpDir); err != nil {
			return fmt.Errorf("failed to remove temp dir %q: %w", s.tmpDir, err)
		}
		s.tmpDir = ""
	}
	return nil
}

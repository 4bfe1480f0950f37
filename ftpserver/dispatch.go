package ftpserver

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/justapithecus/skylink/wire"
)

// errReplyDeferred is returned by a handler that sends its own replies.
var errReplyDeferred = errors.New("reply deferred")

// errnoError carries an OS errno for ErrFailErrno replies.
type errnoError struct {
	errno syscall.Errno
	err   error
}

func (e *errnoError) Error() string {
	return fmt.Sprintf("errno %d: %v", uint8(e.errno), e.err)
}

func (e *errnoError) Unwrap() error {
	return e.err
}

// withErrno wraps err as an errnoError if it carries a syscall.Errno.
// Otherwise err is returned unchanged.
func withErrno(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &errnoError{errno: errno, err: err}
	}
	return err
}

// handlerFunc services one request. rsp is prefilled as an empty ACK for
// req; the handler fills its data on success or returns an error that is
// turned into a NAK. Handlers run with mu held.
type handlerFunc func(s *Server, req, rsp *wire.Payload) error

type route struct {
	handle handlerFunc
	// stopsBurst routes cancel and join any burst worker before mu is taken.
	stopsBurst bool
}

var routes = map[wire.Opcode]route{
	wire.CmdTerminateSession: {handle: (*Server).handleTerminate, stopsBurst: true},
	wire.CmdResetSessions:    {handle: (*Server).handleReset, stopsBurst: true},
	wire.CmdListDirectory:    {handle: (*Server).handleList},
	wire.CmdOpenFileRO:       {handle: (*Server).handleOpenRO, stopsBurst: true},
	wire.CmdReadFile:         {handle: (*Server).handleRead},
	wire.CmdCreateFile:       {handle: (*Server).handleCreate, stopsBurst: true},
	wire.CmdWriteFile:        {handle: (*Server).handleWrite},
	wire.CmdRemoveFile:       {handle: (*Server).handleRemoveFile},
	wire.CmdCreateDirectory:  {handle: (*Server).handleCreateDirectory},
	wire.CmdRemoveDirectory:  {handle: (*Server).handleRemoveDirectory},
	wire.CmdOpenFileWO:       {handle: (*Server).handleOpenWO, stopsBurst: true},
	wire.CmdTruncateFile:     {handle: (*Server).handleTruncate},
	wire.CmdRename:           {handle: (*Server).handleRename},
	wire.CmdCalcFileCRC32:    {handle: (*Server).handleCRC32},
	wire.CmdBurstReadFile:    {handle: (*Server).handleBurstRead, stopsBurst: true},
}

// HandleMessage processes one inbound link message.
//
// Messages that are not file-transfer messages, or that are addressed to
// another system or component, are dropped. A request whose size field
// exceeds the data capacity is answered with ErrInvalidDataSize regardless
// of opcode. Unknown opcodes and CmdNone are ignored without a reply.
func (s *Server) HandleMessage(msg wire.Message) {
	if msg.MsgID != wire.MsgIDFileTransfer {
		return
	}
	s.metrics.IncFrameReceived()

	if !s.addressedToSelf(&msg) {
		s.metrics.IncFrameIgnored()
		return
	}

	req, err := msg.Decode()
	if err != nil {
		s.metrics.IncLinkDecodeError()
		s.logger.Warn("malformed file-transfer payload", map[string]any{
			"peer":  msg.Sender.String(),
			"error": err.Error(),
		})
		return
	}

	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if s.closed {
		return
	}

	peer := msg.Sender

	if req.Size > wire.MaxDataLength {
		s.metrics.IncFrameOversize()
		rsp := newReply(&req)
		setNak(&rsp, wire.ErrInvalidDataSize)
		s.mu.Lock()
		s.send(peer, &rsp)
		s.mu.Unlock()
		return
	}

	r, ok := routes[req.Opcode]
	if !ok {
		s.logger.Debug("ignoring opcode", map[string]any{"opcode": req.Opcode.String(), "seq": req.Seq})
		return
	}
	s.metrics.IncRequest(req.Opcode.String())
	s.logger.Debug("request", map[string]any{
		"opcode": req.Opcode.String(),
		"seq":    req.Seq,
		"size":   req.Size,
		"offset": req.Offset,
		"peer":   peer.String(),
	})

	if r.stopsBurst {
		s.cancelBurst()
	}

	rsp := newReply(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.peer = peer
	err = r.handle(s, &req, &rsp)
	if errors.Is(err, errReplyDeferred) {
		return
	}
	if err != nil {
		s.logger.Debug("request failed", map[string]any{
			"opcode": req.Opcode.String(),
			"seq":    req.Seq,
			"error":  err.Error(),
		})
		setNakFromError(&rsp, err)
	}
	s.send(peer, &rsp)
}

func (s *Server) addressedToSelf(msg *wire.Message) bool {
	if msg.TargetSystem != 0 && msg.TargetSystem != s.self.SystemID {
		return false
	}
	if msg.TargetComponent != 0 && msg.TargetComponent != s.self.ComponentID {
		return false
	}
	return true
}

// newReply returns an empty ACK answering req.
func newReply(req *wire.Payload) wire.Payload {
	return wire.Payload{
		Seq:       req.Seq + 1,
		Opcode:    wire.RspAck,
		ReqOpcode: req.Opcode,
	}
}

func setNak(rsp *wire.Payload, code wire.Result) {
	rsp.Opcode = wire.RspNak
	rsp.Offset = 0
	rsp.BurstComplete = 0
	rsp.Data = [wire.MaxDataLength]byte{}
	rsp.SetBytes([]byte{uint8(code.Wire())})
}

func setNakFromError(rsp *wire.Payload, err error) {
	var errnoErr *errnoError
	if errors.As(err, &errnoErr) {
		setNak(rsp, wire.ErrFailErrno)
		rsp.SetBytes([]byte{uint8(wire.ErrFailErrno), uint8(errnoErr.errno)})
		return
	}
	setNak(rsp, wire.AsResult(err))
}

// send delivers p to target and counts it. Requires mu, which keeps the
// request goroutine and the burst worker from calling the Sender at once.
func (s *Server) send(target wire.Address, p *wire.Payload) {
	if p.Opcode == wire.RspNak {
		s.metrics.IncNak(wire.Result(p.Data[0]).String())
	} else {
		s.metrics.IncAck()
	}

	msg := wire.NewMessage(s.self, target, p)
	if err := s.sender.Send(msg); err != nil {
		s.metrics.IncSendError()
		s.logger.Warn("failed to send reply", map[string]any{
			"peer":       target.String(),
			"req_opcode": p.ReqOpcode.String(),
			"error":      err.Error(),
		})
	}
}
